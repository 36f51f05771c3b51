package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func runGraph(t *testing.T, g *gorgonia.ExprGraph) {
	t.Helper()
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())
}

func constNode(g *gorgonia.ExprGraph, name string, data []float64, shape ...int) *gorgonia.Node {
	backing := make([]float64, len(data))
	copy(backing, data)
	return gorgonia.NewTensor(g, gorgonia.Float64, len(shape), gorgonia.WithShape(shape...), gorgonia.WithName(name), gorgonia.WithValue(tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))))
}

func randomNode(g *gorgonia.ExprGraph, name string, shape ...int) *gorgonia.Node {
	return gorgonia.NewTensor(g, gorgonia.Float64, len(shape), gorgonia.WithShape(shape...), gorgonia.WithName(name), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))
}

func valueData(t *testing.T, v gorgonia.Value) []float64 {
	t.Helper()
	require.NotNil(t, v)
	data, ok := v.Data().([]float64)
	require.True(t, ok, "value must hold []float64")
	return data
}

func layerNames(layers []*Layer) []string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name
	}
	return names
}

package dcgan_go

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestBatchChunks(t *testing.T) {
	assert.Equal(t, []SlicerOneStep{{0, 4}, {4, 8}, {8, 10}}, batchChunks(10, 3))
	assert.Equal(t, []SlicerOneStep{{0, 1}, {1, 2}}, batchChunks(2, 4))
	assert.Equal(t, []SlicerOneStep{{0, 5}}, batchChunks(5, 0))
	assert.Equal(t, []SlicerOneStep{{0, 3}, {3, 6}}, batchChunks(6, 2))
}

func TestNetworkLearnables(t *testing.T) {
	g := gorgonia.NewGraph()
	conv := NewConvLayer(g, "net.conv", 2, 4, 3, 1, 1, false)
	norm, err := GetNormalization(g, NormalizationBatch, 4, "net.bn")
	require.NoError(t, err)
	act, err := NewActivationLayer("net.relu", ActivationReLU)
	require.NoError(t, err)
	net := &Network{Name: "net", Layers: []*Layer{conv, norm, act}}

	assert.Len(t, net.Learnables(), 3)
	assert.Equal(t, 4*2*3*3+4+4, net.NumParams())

	shapes, err := net.OutShapes(tensor.Shape{2, 2, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, []tensor.Shape{{2, 4, 5, 5}, {2, 4, 5, 5}, {2, 4, 5, 5}}, shapes)

	input := randomNode(g, "x", 2, 2, 5, 5)
	require.NoError(t, net.Fwd(input))
	assert.Equal(t, tensor.Shape{2, 4, 5, 5}, net.Out().Shape())
	require.NotNil(t, norm.stats)
	net.SetTesting()
	assert.False(t, norm.stats.training)
	net.SetTraining()
	assert.True(t, norm.stats.training)

	var outVal gorgonia.Value
	gorgonia.Read(net.Out(), &outVal)
	runGraph(t, g)
	for _, v := range valueData(t, outVal) {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestNetworkEmpty(t *testing.T) {
	g := gorgonia.NewGraph()
	net := &Network{Name: "empty"}
	require.Error(t, net.Fwd(randomNode(g, "x", 1, 1, 2, 2)))
	act, err := NewActivationLayer("one.tanh", ActivationTanh)
	require.NoError(t, err)
	net.Layers = []*Layer{act}
	require.Error(t, net.Fwd(nil))
}

func TestNetworkReplicasShareWeights(t *testing.T) {
	g := gorgonia.NewGraph()
	conv := NewConvLayer(g, "net.conv", 1, 2, 3, 1, 1, true)
	net := &Network{Name: "net", Layers: []*Layer{conv}, Replicas: 3}
	input := constNode(g, "x", []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		-1, -2, -3, -4,
	}, 3, 1, 2, 2)
	require.NoError(t, net.Fwd(input))
	assert.Equal(t, tensor.Shape{3, 2, 2, 2}, net.Out().Shape())
	assert.Equal(t, 3, conv.calls)
	assert.Len(t, net.Learnables(), 2)

	single := &Network{Name: "single", Layers: []*Layer{conv}}
	require.NoError(t, single.Fwd(input))

	var replicated, whole gorgonia.Value
	gorgonia.Read(net.Out(), &replicated)
	gorgonia.Read(single.Out(), &whole)
	runGraph(t, g)
	assert.InDeltaSlice(t, valueData(t, whole), valueData(t, replicated), 1e-9)
}

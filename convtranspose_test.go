package dcgan_go

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// naiveConvTranspose Direct scatter formulation with (in x out x k x k) weights
func naiveConvTranspose(x []float64, n, cin, h, w int, weights []float64, cout, k, stride, pad int) ([]float64, int, int) {
	hOut := (h-1)*stride - 2*pad + k
	wOut := (w-1)*stride - 2*pad + k
	out := make([]float64, n*cout*hOut*wOut)
	for b := 0; b < n; b++ {
		for c := 0; c < cin; c++ {
			for p := 0; p < h; p++ {
				for q := 0; q < w; q++ {
					xv := x[((b*cin+c)*h+p)*w+q]
					for o := 0; o < cout; o++ {
						for ka := 0; ka < k; ka++ {
							i := p*stride - pad + ka
							if i < 0 || i >= hOut {
								continue
							}
							for kb := 0; kb < k; kb++ {
								j := q*stride - pad + kb
								if j < 0 || j >= wOut {
									continue
								}
								out[((b*cout+o)*hOut+i)*wOut+j] += xv * weights[((c*cout+o)*k+ka)*k+kb]
							}
						}
					}
				}
			}
		}
	}
	return out, hOut, wOut
}

func randomSlice(rnd *rand.Rand, n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	return data
}

func TestScatterMatrix(t *testing.T) {
	m := scatterMatrix(3, 9, 2, 2)
	require.Equal(t, tensor.Shape{3, 9}, m.Shape())
	data := m.Data().([]float64)
	expected := []float64{
		0, 0, 1, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 1, 0, 0,
	}
	assert.Equal(t, expected, data)
}

func TestConvTransposeKernel(t *testing.T) {
	// (in=1 x out=2 x 2 x 2)
	weights := tensor.New(tensor.WithShape(1, 2, 2, 2), tensor.WithBacking([]float64{
		1, 2,
		3, 4,

		5, 6,
		7, 8,
	}))
	converted, err := ConvTransposeKernel(weights)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, converted.Shape())
	assert.Equal(t, []float64{4, 3, 2, 1, 8, 7, 6, 5}, converted.Data().([]float64))

	_, err = ConvTransposeKernel(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 2, 3, 4})))
	require.ErrorIs(t, err, ErrInvalidInputShape)
}

func TestConvTransposeMatchesReference(t *testing.T) {
	cases := []struct {
		name                string
		n, cin, h, cout     int
		kernel, stride, pad int
		expectedH           int
	}{
		{"pyramid", 2, 2, 3, 3, 4, 2, 1, 6},
		{"latent", 2, 3, 1, 2, 4, 1, 0, 4},
	}
	rnd := rand.New(rand.NewSource(1337))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := randomSlice(rnd, tc.n*tc.cin*tc.h*tc.h)
			torchWeights := randomSlice(rnd, tc.cin*tc.cout*tc.kernel*tc.kernel)
			expected, hOut, wOut := naiveConvTranspose(x, tc.n, tc.cin, tc.h, tc.h, torchWeights, tc.cout, tc.kernel, tc.stride, tc.pad)
			require.Equal(t, tc.expectedH, hOut)

			converted, err := ConvTransposeKernel(tensor.New(tensor.WithShape(tc.cin, tc.cout, tc.kernel, tc.kernel), tensor.WithBacking(torchWeights)))
			require.NoError(t, err)

			g := gorgonia.NewGraph()
			l := NewConvTransposeLayer(g, "test."+tc.name, tc.cin, tc.cout, tc.kernel, tc.stride, tc.pad, false)
			require.NoError(t, gorgonia.Let(l.WeightNode, converted))
			input := constNode(g, "x", x, tc.n, tc.cin, tc.h, tc.h)

			shp, err := l.OutShape(input.Shape())
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{tc.n, tc.cout, hOut, wOut}, shp)

			out, err := l.Fwd(input)
			require.NoError(t, err)
			var outVal gorgonia.Value
			gorgonia.Read(out, &outVal)
			runGraph(t, g)

			require.Equal(t, tensor.Shape{tc.n, tc.cout, hOut, wOut}, outVal.Shape())
			got := valueData(t, outVal)
			require.Len(t, got, len(expected))
			for i := range expected {
				assert.InDelta(t, expected[i], got[i], 1e-9, "element %d", i)
			}
		})
	}
}

func TestConvOutShape(t *testing.T) {
	g := gorgonia.NewGraph()
	down := NewConvLayer(g, "test.down", 3, 8, 4, 2, 1, true)
	shp, err := down.OutShape(tensor.Shape{5, 3, 32, 32})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{5, 8, 16, 16}, shp)
	assert.Len(t, down.Learnables(), 2)
	assert.Equal(t, 8*3*4*4+8, down.NumParams())

	_, err = down.OutShape(tensor.Shape{5, 4, 32, 32})
	require.ErrorIs(t, err, ErrInvalidInputShape)

	final := NewConvLayer(g, "test.final", 8, 1, 4, 1, 0, false)
	_, err = final.OutShape(tensor.Shape{5, 8, 3, 3})
	require.ErrorIs(t, err, ErrInvalidGeometry)
	assert.Len(t, final.Learnables(), 1)
}

package dcgan_go

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestGeneratorLayout(t *testing.T) {
	g := gorgonia.NewGraph()
	gen, err := NewGenerator(g, DefaultGeneratorConfig(64, 3, 100, 64))
	require.NoError(t, err)
	expected := []string{
		"generator.initial.100-512.convt",
		"generator.initial.512.batchnorm",
		"generator.initial.512.leakyrelu",
		"generator.pyramid.512-256.convt",
		"generator.pyramid.256.batchnorm",
		"generator.pyramid.256.leakyrelu",
		"generator.pyramid.256-128.convt",
		"generator.pyramid.128.batchnorm",
		"generator.pyramid.128.leakyrelu",
		"generator.pyramid.128-64.convt",
		"generator.pyramid.64.batchnorm",
		"generator.pyramid.64.leakyrelu",
		"generator.final.64-3.convt",
		"generator.final.3.tanh",
	}
	assert.Equal(t, expected, layerNames(gen.Layers()))
	for _, l := range gen.Layers() {
		if l.Type == LayerConvTranspose {
			assert.Nil(t, l.BiasNode, "layer '%s' must not have bias with normalization", l.Name)
		}
	}

	shapes, err := gen.OutShapes(8)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{8, 512, 4, 4}, shapes[0])
	assert.Equal(t, tensor.Shape{8, 64, 32, 32}, shapes[11])
	assert.Equal(t, tensor.Shape{8, 3, 64, 64}, shapes[len(shapes)-1])
}

func TestGeneratorExtraLayersAfterPyramid(t *testing.T) {
	cfg := DefaultGeneratorConfig(16, 1, 8, 4)
	cfg.Normalize = NormalizationNone
	cfg.Activation = ActivationReLU
	cfg.ExtraLayers = 1
	cfg.ExtraConv = 1
	gen, err := NewGenerator(gorgonia.NewGraph(), cfg)
	require.NoError(t, err)
	expected := []string{
		"generator.initial.8-8.convt",
		"generator.initial.8.relu",
		"generator.pyramid.8-4.convt",
		"generator.pyramid.4.relu",
		"generator.pyramid.4.extraconv0.conv",
		"generator.pyramid.4.extraconv0.relu",
		"generator.extra0.4.conv",
		"generator.extra0.4.relu",
		"generator.final.4-1.convt",
		"generator.final.1.tanh",
	}
	assert.Equal(t, expected, layerNames(gen.Layers()))
	for _, l := range gen.Layers() {
		if l.Type == LayerConvolutional || l.Type == LayerConvTranspose {
			assert.NotNil(t, l.BiasNode, "layer '%s' must have bias without normalization", l.Name)
		}
	}
}

func TestGeneratorShapes(t *testing.T) {
	for _, imsize := range []int{16, 32, 64, 128, 256} {
		for _, imchannel := range []int{1, 3} {
			cfg := DefaultGeneratorConfig(imsize, imchannel, 10, 4)
			cfg.ExtraLayers = 1
			gen, err := NewGenerator(gorgonia.NewGraph(), cfg)
			require.NoError(t, err, "imsize %d", imsize)
			shapes, err := gen.OutShapes(3)
			require.NoError(t, err, "imsize %d", imsize)
			assert.Equal(t, tensor.Shape{3, imchannel, imsize, imsize}, shapes[len(shapes)-1], "imsize %d", imsize)
			// widest layer right after latent projection
			assert.Equal(t, 4*imsize/8, shapes[0][1], "imsize %d", imsize)
		}
	}
}

func TestGeneratorInvalidConfig(t *testing.T) {
	for _, imsize := range []int{0, 4, 48, 80} {
		_, err := NewGenerator(gorgonia.NewGraph(), DefaultGeneratorConfig(imsize, 3, 10, 8))
		require.ErrorIs(t, err, ErrInvalidGeometry, "imsize %d", imsize)
	}
	mutations := map[string]func(cfg *GeneratorConfig){
		"activation": func(cfg *GeneratorConfig) { cfg.Activation = "gelu" },
		"normalize":  func(cfg *GeneratorConfig) { cfg.Normalize = "group" },
		"width":      func(cfg *GeneratorConfig) { cfg.Width = 1 },
		"nz":         func(cfg *GeneratorConfig) { cfg.LatentSize = 0 },
		"extraconv":  func(cfg *GeneratorConfig) { cfg.ExtraConv = -2 },
		"ngpu":       func(cfg *GeneratorConfig) { cfg.NGPU = 0 },
	}
	for name, mutate := range mutations {
		cfg := DefaultGeneratorConfig(32, 3, 10, 8)
		mutate(&cfg)
		_, err := NewGenerator(gorgonia.NewGraph(), cfg)
		require.ErrorIs(t, err, ErrInvalidConfiguration, name)
	}
}

func TestGeneratorWrongInput(t *testing.T) {
	g := gorgonia.NewGraph()
	gen, err := NewGenerator(g, DefaultGeneratorConfig(16, 1, 8, 4))
	require.NoError(t, err)
	require.ErrorIs(t, gen.Fwd(nil), ErrInvalidInputShape)
	wrongLatent := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 7), gorgonia.WithName("wrong_latent"))
	require.ErrorIs(t, gen.Fwd(wrongLatent), ErrInvalidInputShape)
	spatial := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 8, 2, 2), gorgonia.WithName("spatial"))
	require.ErrorIs(t, gen.Fwd(spatial), ErrInvalidInputShape)
}

func TestGeneratorFeedforward(t *testing.T) {
	sampler := NewLatentSampler(NoiseNormal, 42)
	spatialLatent, err := sampler.Sample4D(3, 8)
	require.NoError(t, err)
	cases := []struct {
		name   string
		latent *tensor.Dense
		ngpu   int
	}{
		{"flat", sampler.Sample(3, 8), 1},
		{"spatial", spatialLatent, 1},
		{"replicas", sampler.Sample(3, 8), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultGeneratorConfig(16, 2, 8, 4)
			cfg.NGPU = tc.ngpu
			g := gorgonia.NewGraph()
			gen, err := NewGenerator(g, cfg)
			require.NoError(t, err)
			input := gorgonia.NewTensor(g, gorgonia.Float64, tc.latent.Dims(), gorgonia.WithShape(tc.latent.Shape()...), gorgonia.WithName("generator_input"), gorgonia.WithValue(tc.latent))
			require.NoError(t, gen.Fwd(input))
			assert.Equal(t, tensor.Shape{3, 2, 16, 16}, gen.Out().Shape())
			gen.SetTraining()

			var outVal gorgonia.Value
			gorgonia.Read(gen.Out(), &outVal)
			runGraph(t, g)
			got := valueData(t, outVal)
			require.Len(t, got, 3*2*16*16)
			for _, v := range got {
				assert.True(t, v >= -1 && v <= 1, "tanh output %v", v)
			}
		})
	}
}

func TestGeneratorDCGAN64(t *testing.T) {
	g := gorgonia.NewGraph()
	gen, err := NewGenerator(g, DefaultGeneratorConfig(64, 3, 100, 64))
	require.NoError(t, err)
	latent := NewLatentSampler(NoiseNormal, 64).Sample(8, 100)
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(8, 100), gorgonia.WithName("generator_input"), gorgonia.WithValue(latent))
	require.NoError(t, gen.Fwd(input))
	require.Equal(t, tensor.Shape{8, 3, 64, 64}, gen.Out().Shape())
	if testing.Short() {
		t.Skip("full size generator is slow")
	}

	var outVal gorgonia.Value
	gorgonia.Read(gen.Out(), &outVal)
	runGraph(t, g)
	assert.Equal(t, tensor.Shape{8, 3, 64, 64}, outVal.Shape())
	for _, v := range valueData(t, outVal) {
		require.True(t, v >= -1 && v <= 1, "tanh output %v", v)
	}
}

func TestGeneratorTestingMode(t *testing.T) {
	g := gorgonia.NewGraph()
	gen, err := NewGenerator(g, DefaultGeneratorConfig(16, 1, 8, 4))
	require.NoError(t, err)
	latent := NewLatentSampler(NoiseNormal, 3).Sample(4, 8)
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(4, 8), gorgonia.WithName("generator_input"), gorgonia.WithValue(latent))
	require.NoError(t, gen.Fwd(input))
	var outVal gorgonia.Value
	gorgonia.Read(gen.Out(), &outVal)

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	for i := 0; i < 200; i++ {
		require.NoError(t, vm.RunAll())
		vm.Reset()
	}
	trainOut := append([]float64(nil), valueData(t, outVal)...)

	gen.SetTesting()
	require.NoError(t, vm.RunAll())
	vm.Reset()
	evalOut := valueData(t, outVal)
	require.Len(t, evalOut, len(trainOut))
	diff, norm := 0.0, 0.0
	for i := range trainOut {
		diff += (evalOut[i] - trainOut[i]) * (evalOut[i] - trainOut[i])
		norm += trainOut[i] * trainOut[i]
	}
	// same latent batch: running statistics match batch ones up to unbiased variance correction
	assert.Less(t, math.Sqrt(diff/norm), 0.1)
}

package dcgan_go

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSaveLoad(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discriminator.Normalize = NormalizationInstance
	cfg.Discriminator.ExtraConv = 2
	cfg.Generator.NGPU = 4
	cfg.Loss = LossWasserstein
	cfg.Discriminator.OutActivation = ActivationNone
	fname := filepath.Join(t.TempDir(), "dcgan.json")
	require.NoError(t, cfg.Save(fname))

	loaded, err := LoadConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	require.NoError(t, loaded.Validate())
}

func TestConfigPartial(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "partial.json")
	data := []byte(`{"discriminator": {"imsize": 32, "normalize": "batch"}, "epochs": 3}`)
	require.NoError(t, os.WriteFile(fname, data, 0644))

	cfg, err := LoadConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Discriminator.ImageSize)
	assert.Equal(t, NormalizationBatch, cfg.Discriminator.Normalize)
	assert.Equal(t, ActivationLeakyReLU, cfg.Discriminator.Activation)
	assert.Equal(t, ActivationSigmoid, cfg.Discriminator.OutActivation)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, DefaultConfig().Generator, cfg.Generator)
}

func TestConfigLoadErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	fname := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(fname, []byte(`{"epochs": "ten"}`), 0644))
	_, err = LoadConfig(fname)
	require.Error(t, err)
}

func TestDefaultConfigsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.Discriminator.ImageSize, cfg.Generator.ImageSize)
	assert.Equal(t, NormalizationNone, DefaultDiscriminatorConfig(64, 3, 64).Normalize)
	assert.Equal(t, NormalizationBatch, DefaultGeneratorConfig(64, 3, 100, 64).Normalize)
}

func TestConfigValidateLoss(t *testing.T) {
	mutations := map[string]func(cfg *Config){
		"wgan with sigmoid critic": func(cfg *Config) { cfg.Loss = LossWasserstein },
		"bce without sigmoid":      func(cfg *Config) { cfg.Discriminator.OutActivation = ActivationNone },
		"unknown loss":             func(cfg *Config) { cfg.Loss = "hinge" },
		"image size mismatch":      func(cfg *Config) { cfg.Generator.ImageSize = 32 },
		"channels mismatch":        func(cfg *Config) { cfg.Generator.ImageChannels = 3 },
		"zero batch":               func(cfg *Config) { cfg.BatchSize = 0 },
		"zero learning rate":       func(cfg *Config) { cfg.LearningRate = 0 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration, name)
	}

	cfg := DefaultConfig()
	cfg.Loss = LossWasserstein
	cfg.Discriminator.OutActivation = ActivationNone
	require.NoError(t, cfg.Validate())
	cfg.Loss = LossMSE
	require.NoError(t, cfg.Validate())
}

func TestValidatePositiveOrder(t *testing.T) {
	cfg := DefaultDiscriminatorConfig(32, 0, 0)
	cfg.OutDim = 0
	cfg.NGPU = 0
	for i := 0; i < 10; i++ {
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), "imchannel must be positive")
	}
	gen := DefaultGeneratorConfig(32, 1, 0, 8)
	gen.NGPU = 0
	assert.Contains(t, gen.Validate().Error(), "nz must be positive")
}

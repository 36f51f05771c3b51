package dcgan_go

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// DiscriminatorConfig Parameters of DCGAN discriminator
//
// ImageSize - side of square input image. Must be power of two and multiple of 16
// Width - number of feature maps after first convolution, doubled on every pyramid step
// ExtraLayers - number of constant resolution conv blocks right after first convolution
// ExtraConv - number of constant resolution conv blocks after every pyramid step
// OutActivation - activation applied to final scores, 'none' to leave them as is
// NGPU - number of shards the batch is split into during feedforward
//
type DiscriminatorConfig struct {
	ImageSize     int               `json:"imsize"`
	ImageChannels int               `json:"imchannel"`
	Width         int               `json:"netwidth"`
	ExtraLayers   int               `json:"extralayers"`
	ExtraConv     int               `json:"extraconv"`
	Activation    ActivationType    `json:"activation"`
	Normalize     NormalizationType `json:"normalize"`
	OutActivation ActivationType    `json:"outactivation"`
	OutDim        int               `json:"outdim"`
	NGPU          int               `json:"ngpu"`
}

// DefaultDiscriminatorConfig Returns configuration with default values for optional parameters
func DefaultDiscriminatorConfig(imsize, imchannel, netwidth int) DiscriminatorConfig {
	return DiscriminatorConfig{
		ImageSize:     imsize,
		ImageChannels: imchannel,
		Width:         netwidth,
		Activation:    ActivationLeakyReLU,
		Normalize:     NormalizationNone,
		OutActivation: ActivationNone,
		OutDim:        1,
		NGPU:          1,
	}
}

// Validate Checks every parameter. Nothing is built when it fails.
func (cfg DiscriminatorConfig) Validate() error {
	if err := validateImageSize(cfg.ImageSize); err != nil {
		return err
	}
	if err := validatePositive([]namedValue{{"imchannel", cfg.ImageChannels}, {"netwidth", cfg.Width}, {"outdim", cfg.OutDim}, {"ngpu", cfg.NGPU}}); err != nil {
		return err
	}
	if err := validateCounts(cfg.ExtraLayers, cfg.ExtraConv); err != nil {
		return err
	}
	if _, err := GetActivation(cfg.Activation); err != nil {
		return err
	}
	if cfg.OutActivation != ActivationNone {
		if _, err := GetActivation(cfg.OutActivation); err != nil {
			return errors.Wrap(err, "Bad output activation")
		}
	}
	return validateNormalization(cfg.Normalize)
}

// GeneratorConfig Parameters of DCGAN generator
//
// ImageSize - side of square output image. Must be power of two and multiple of 16
// LatentSize - number of channels of latent vector (nz)
// Width - feature maps before final transposed convolution. Widest layer has Width*ImageSize/8 maps
// ExtraLayers - number of constant resolution conv blocks after upsampling pyramid
// ExtraConv - number of constant resolution conv blocks after every pyramid step
// NGPU - number of shards the batch is split into during feedforward
//
type GeneratorConfig struct {
	ImageSize     int               `json:"imsize"`
	ImageChannels int               `json:"imchannel"`
	LatentSize    int               `json:"nz"`
	Width         int               `json:"width"`
	ExtraLayers   int               `json:"extralayers"`
	ExtraConv     int               `json:"extraconv"`
	Activation    ActivationType    `json:"activation"`
	Normalize     NormalizationType `json:"normalize"`
	NGPU          int               `json:"ngpu"`
}

// DefaultGeneratorConfig Returns configuration with default values for optional parameters
func DefaultGeneratorConfig(imsize, imchannel, nz, width int) GeneratorConfig {
	return GeneratorConfig{
		ImageSize:     imsize,
		ImageChannels: imchannel,
		LatentSize:    nz,
		Width:         width,
		Activation:    ActivationLeakyReLU,
		Normalize:     NormalizationBatch,
		NGPU:          1,
	}
}

// Validate Checks every parameter. Nothing is built when it fails.
func (cfg GeneratorConfig) Validate() error {
	if err := validateImageSize(cfg.ImageSize); err != nil {
		return err
	}
	if err := validatePositive([]namedValue{{"imchannel", cfg.ImageChannels}, {"nz", cfg.LatentSize}, {"ngpu", cfg.NGPU}}); err != nil {
		return err
	}
	// width/2 is the seed of channel progression
	if cfg.Width < 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "width must be at least 2, but got %d", cfg.Width)
	}
	if err := validateCounts(cfg.ExtraLayers, cfg.ExtraConv); err != nil {
		return err
	}
	if _, err := GetActivation(cfg.Activation); err != nil {
		return err
	}
	return validateNormalization(cfg.Normalize)
}

func validateImageSize(imsize int) error {
	if imsize <= 0 || imsize%16 != 0 {
		return errors.Wrapf(ErrInvalidGeometry, "imsize has to be a multiple of 16, but got %d", imsize)
	}
	if imsize&(imsize-1) != 0 {
		return errors.Wrapf(ErrInvalidGeometry, "imsize has to be a power of two to reach 4x4 by halving, but got %d", imsize)
	}
	return nil
}

type namedValue struct {
	name  string
	value int
}

// validatePositive Reports first non-positive value in order of declaration
func validatePositive(values []namedValue) error {
	for _, v := range values {
		if v.value <= 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "%s must be positive, but got %d", v.name, v.value)
		}
	}
	return nil
}

func validateCounts(extralayers, extraconv int) error {
	if extralayers < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "extralayers can't be negative, but got %d", extralayers)
	}
	if extraconv < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "extraconv can't be negative, but got %d", extraconv)
	}
	return nil
}

func validateNormalization(normalize NormalizationType) error {
	switch normalize {
	case NormalizationNone, NormalizationBatch, NormalizationInstance:
		return nil
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "normalize layer '%s' is not supported", normalize)
	}
}

const (
	LossBCE         = "bce"
	LossMSE         = "mse"
	LossWasserstein = "wgan"
)

// Config Both networks plus training settings. Used by examples.
type Config struct {
	Discriminator DiscriminatorConfig `json:"discriminator"`
	Generator     GeneratorConfig     `json:"generator"`
	BatchSize     int                 `json:"batch_size"`
	Epochs        int                 `json:"epochs"`
	LearningRate  float64             `json:"learning_rate"`
	Loss          string              `json:"loss"`
	Seed          uint64              `json:"seed"`
}

// DefaultConfig Small networks for 16x16 grayscale images
func DefaultConfig() Config {
	d := DefaultDiscriminatorConfig(16, 1, 8)
	d.OutActivation = ActivationSigmoid
	return Config{
		Discriminator: d,
		Generator:     DefaultGeneratorConfig(16, 1, 16, 8),
		BatchSize:     8,
		Epochs:        10,
		LearningRate:  0.0002,
		Loss:          LossBCE,
		Seed:          1337,
	}
}

// Validate Checks both networks, their compatibility and training settings.
//
// 'bce' needs scores in (0; 1), so discriminator has to end with sigmoid.
// 'wgan' critic has to output raw scores, so discriminator has no output activation.
//
func (cfg Config) Validate() error {
	if err := cfg.Discriminator.Validate(); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	if err := cfg.Generator.Validate(); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	if cfg.Discriminator.ImageSize != cfg.Generator.ImageSize || cfg.Discriminator.ImageChannels != cfg.Generator.ImageChannels {
		return errors.Wrapf(ErrInvalidConfiguration, "generator produces (%d, %d, %d) images, but discriminator takes (%d, %d, %d)",
			cfg.Generator.ImageChannels, cfg.Generator.ImageSize, cfg.Generator.ImageSize,
			cfg.Discriminator.ImageChannels, cfg.Discriminator.ImageSize, cfg.Discriminator.ImageSize,
		)
	}
	if err := validatePositive([]namedValue{{"batch_size", cfg.BatchSize}, {"epochs", cfg.Epochs}}); err != nil {
		return err
	}
	if cfg.LearningRate <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "learning_rate must be positive, but got %g", cfg.LearningRate)
	}
	switch cfg.Loss {
	case LossBCE:
		if cfg.Discriminator.OutActivation != ActivationSigmoid {
			return errors.Wrapf(ErrInvalidConfiguration, "loss '%s' needs '%s' output activation, but got '%s'", cfg.Loss, ActivationSigmoid, cfg.Discriminator.OutActivation)
		}
	case LossMSE:
	case LossWasserstein:
		if cfg.Discriminator.OutActivation != ActivationNone {
			return errors.Wrapf(ErrInvalidConfiguration, "loss '%s' needs raw critic scores, but output activation is '%s'", cfg.Loss, cfg.Discriminator.OutActivation)
		}
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "loss '%s' is not supported", cfg.Loss)
	}
	return nil
}

// LoadConfig Reads JSON configuration. Missing fields keep values of DefaultConfig()
func LoadConfig(fname string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(fname)
	if err != nil {
		return cfg, errors.Wrap(err, "Can't open config file")
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, errors.Wrap(err, "Can't decode config file")
	}
	return cfg, nil
}

// Save Writes configuration as indented JSON
func (cfg Config) Save(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create config file")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		return errors.Wrap(err, "Can't encode config")
	}
	return f.Close()
}

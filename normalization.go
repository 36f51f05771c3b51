package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NormalizationType Name of normalization as it appears in configuration
type NormalizationType string

const (
	NormalizationNone     = NormalizationType("none")
	NormalizationBatch    = NormalizationType("batch")
	NormalizationInstance = NormalizationType("instance")
)

const (
	defaultNormMomentum = 0.9
	defaultNormEpsilon  = 1e-5
)

// GetNormalization Returns normalization layer over 'channels' feature maps.
//
// name - fully qualified layer name (prefix for gamma/beta nodes)
// 'none' is rejected: callers have to check for it before calling this function.
//
// Batch normalization carries learnable per-channel gamma (ones) and beta (zeros).
// Instance normalization has no learnables and always uses per-sample statistics.
//
func GetNormalization(g *gorgonia.ExprGraph, normalize NormalizationType, channels int, name string) (*Layer, error) {
	if channels <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "normalization '%s' needs positive number of channels, but got %d", name, channels)
	}
	l := &Layer{
		Name:          name,
		Type:          LayerNormalization,
		Normalization: normalize,
		InChannels:    channels,
		OutChannels:   channels,
		Momentum:      defaultNormMomentum,
		Epsilon:       defaultNormEpsilon,
	}
	switch normalize {
	case NormalizationBatch:
		l.GammaNode = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, channels, 1, 1), gorgonia.WithName(name+".gamma"), gorgonia.WithInit(gorgonia.Ones()))
		l.BetaNode = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, channels, 1, 1), gorgonia.WithName(name+".beta"), gorgonia.WithInit(gorgonia.Zeroes()))
		l.stats = newNormStatistics(channels, l.Momentum)
	case NormalizationInstance:
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "normalize layer '%s' is not supported", normalize)
	}
	return l, nil
}

func (l *Layer) normalize(input *gorgonia.Node) (*gorgonia.Node, error) {
	if input.Dims() != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "layer '%s' expects 4-D input, but got %v", l.Name, input.Shape())
	}
	switch l.Normalization {
	case NormalizationBatch:
		return l.batchNorm(input)
	case NormalizationInstance:
		return l.instanceNorm(input)
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "normalize layer '%s' is not supported", l.Normalization)
	}
}

// batchNorm (x - mean) / sqrt(var + eps) * gamma + beta, statistics over batch and spatial axes of every channel.
// Batch statistics go through running statistics tracker, so inference mode normalizes by running ones.
func (l *Layer) batchNorm(input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.stats == nil {
		return nil, fmt.Errorf("Layer '%s' has no running statistics", l.Name)
	}
	shp := input.Shape()
	if shp[1] != l.OutChannels {
		return nil, errors.Wrapf(ErrInvalidInputShape, "layer '%s' expects %d channels, but got %v", l.Name, l.OutChannels, shp)
	}
	batchMean, err := channelMean(input)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't evaluate mean for layer '%s'", l.Name)
	}
	mean, err := trackStatistic(batchMean, l.stats, "mean", 1)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't track mean for layer '%s'", l.Name)
	}
	centered, err := gorgonia.BroadcastSub(input, mean, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (X-mean) for layer '%s'", l.Name)
	}
	sqr, err := gorgonia.Square(centered)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (x^2) for layer '%s'", l.Name)
	}
	batchVariance, err := channelMean(sqr)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't evaluate variance for layer '%s'", l.Name)
	}
	// running variance is unbiased
	m := shp.TotalSize() / shp[1]
	correction := 1.0
	if m > 1 {
		correction = float64(m) / float64(m-1)
	}
	variance, err := trackStatistic(batchVariance, l.stats, "variance", correction)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't track variance for layer '%s'", l.Name)
	}
	varianceEps, err := gorgonia.Add(variance, gorgonia.NewConstant(l.Epsilon))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (var+eps) for layer '%s'", l.Name)
	}
	std, err := gorgonia.Sqrt(varianceEps)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do sqrt(x) for layer '%s'", l.Name)
	}
	normed, err := gorgonia.BroadcastHadamardDiv(centered, std, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (X/std) for layer '%s'", l.Name)
	}
	scaled, err := gorgonia.BroadcastHadamardProd(normed, l.GammaNode, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't scale normalized output of layer '%s'", l.Name)
	}
	shifted, err := gorgonia.BroadcastAdd(scaled, l.BetaNode, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't shift normalized output of layer '%s'", l.Name)
	}
	return shifted, nil
}

// instanceNorm (x - mean) / sqrt(var + eps), statistics over spatial axes of every (sample, channel) pair
func (l *Layer) instanceNorm(input *gorgonia.Node) (*gorgonia.Node, error) {
	mean, err := spatialMean(input)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't evaluate mean for layer '%s'", l.Name)
	}
	centered, err := gorgonia.BroadcastSub(input, mean, nil, []byte{2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (X-mean) for layer '%s'", l.Name)
	}
	sqr, err := gorgonia.Square(centered)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (x^2) for layer '%s'", l.Name)
	}
	variance, err := spatialMean(sqr)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't evaluate variance for layer '%s'", l.Name)
	}
	varianceEps, err := gorgonia.Add(variance, gorgonia.NewConstant(l.Epsilon))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (var+eps) for layer '%s'", l.Name)
	}
	std, err := gorgonia.Sqrt(varianceEps)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do sqrt(x) for layer '%s'", l.Name)
	}
	normed, err := gorgonia.BroadcastHadamardDiv(centered, std, nil, []byte{2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't do (X/std) for layer '%s'", l.Name)
	}
	return normed, nil
}

// spatialMean Mean over axes 2 and 3, reshaped to (N, C, 1, 1) for broadcasting
func spatialMean(x *gorgonia.Node) (*gorgonia.Node, error) {
	shp := x.Shape()
	meanW, err := gorgonia.Mean(x, 3)
	if err != nil {
		return nil, err
	}
	meanHW, err := gorgonia.Mean(meanW, 2)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(meanHW, tensor.Shape{shp[0], shp[1], 1, 1})
}

// channelMean Mean over axes 0, 2 and 3, reshaped to (1, C, 1, 1) for broadcasting
func channelMean(x *gorgonia.Node) (*gorgonia.Node, error) {
	shp := x.Shape()
	meanW, err := gorgonia.Mean(x, 3)
	if err != nil {
		return nil, err
	}
	meanHW, err := gorgonia.Mean(meanW, 2)
	if err != nil {
		return nil, err
	}
	meanNHW, err := gorgonia.Mean(meanHW, 0)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(meanNHW, tensor.Shape{1, shp[1], 1, 1})
}

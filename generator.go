package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GeneratorNet Abstraction for generator part of DCGAN.
//
// Maps (batch x nz) or (batch x nz x 1 x 1) latent vectors to (batch x imchannel x imsize x imsize) images in [-1; 1]
//
type GeneratorNet struct {
	Config  GeneratorConfig
	private *Network
}

// NewGenerator Constructor for GeneratorNet. Weights are created on provided graph.
//
// initial convt 4x4/1 without padding (nz -> cngf, 1x1 -> 4x4) -> norm -> activation
// while size < imsize/2: convt 4x4/2 (c -> c/2) -> norm -> activation, extraconv x [conv 3x3/1 -> norm -> activation]
// extralayers x [conv 3x3/1 -> norm -> activation]
// final convt 4x4/2 (c -> imchannel) -> tanh
//
// Note: extra layers go after the pyramid here, while discriminator puts them before.
//
func NewGenerator(g *gorgonia.ExprGraph, cfg GeneratorConfig) (*GeneratorNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	cngf, tisize := cfg.Width/2, 4
	for tisize != cfg.ImageSize {
		cngf = cngf * 2
		tisize = tisize * 2
	}

	b := newStackBuilder(g, "generator", cfg.Normalize, cfg.Activation)

	// input is Z (bs x nz x 1 x 1), going into a convolution
	b.convTranspose(fmt.Sprintf("initial.%d-%d.convt", cfg.LatentSize, cngf), cfg.LatentSize, cngf, 4, 1, 0)
	if err := b.norm(fmt.Sprintf("initial.%d", cngf), cngf); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	if err := b.activate(fmt.Sprintf("initial.%d", cngf), cfg.Activation); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}

	csize := 4
	for csize < cfg.ImageSize/2 {
		outFeat := cngf / 2
		b.convTranspose(fmt.Sprintf("pyramid.%d-%d.convt", cngf, outFeat), cngf, outFeat, 4, 2, 1)
		if err := b.norm(fmt.Sprintf("pyramid.%d", outFeat), outFeat); err != nil {
			return nil, errors.Wrap(err, "[Generator]")
		}
		if err := b.activate(fmt.Sprintf("pyramid.%d", outFeat), cfg.Activation); err != nil {
			return nil, errors.Wrap(err, "[Generator]")
		}
		for t := 0; t < cfg.ExtraConv; t++ {
			if err := b.refine(fmt.Sprintf("pyramid.%d.extraconv%d", outFeat, t), outFeat); err != nil {
				return nil, errors.Wrap(err, "[Generator]")
			}
		}
		cngf = outFeat
		csize = csize * 2
	}

	for t := 0; t < cfg.ExtraLayers; t++ {
		if err := b.refine(fmt.Sprintf("extra%d.%d", t, cngf), cngf); err != nil {
			return nil, errors.Wrap(err, "[Generator]")
		}
	}

	b.convTranspose(fmt.Sprintf("final.%d-%d.convt", cngf, cfg.ImageChannels), cngf, cfg.ImageChannels, 4, 2, 1)
	if err := b.activate(fmt.Sprintf("final.%d", cfg.ImageChannels), ActivationTanh); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}

	return &GeneratorNet{
		Config: cfg,
		private: &Network{
			Name:     "generator",
			Layers:   b.layers,
			Replicas: cfg.NGPU,
		},
	}, nil
}

// Out Returns reference to output node
func (net *GeneratorNet) Out() *gorgonia.Node {
	return net.private.Out()
}

// Layers Returns layer stack
func (net *GeneratorNet) Layers() []*Layer {
	return net.private.Layers
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// NumParams Returns number of learnable scalars
func (net *GeneratorNet) NumParams() int {
	return net.private.NumParams()
}

// SetTraining Switches normalization into training mode
func (net *GeneratorNet) SetTraining() {
	net.private.SetTraining()
}

// SetTesting Switches normalization into inference mode
func (net *GeneratorNet) SetTesting() {
	net.private.SetTesting()
}

// InputShape Returns 4-D latent shape for provided batch size
func (net *GeneratorNet) InputShape(batchSize int) tensor.Shape {
	return tensor.Shape{batchSize, net.Config.LatentSize, 1, 1}
}

// OutShapes Returns shapes after every layer for provided batch size
func (net *GeneratorNet) OutShapes(batchSize int) ([]tensor.Shape, error) {
	return net.private.OutShapes(net.InputShape(batchSize))
}

// Summary Returns printable table of layers
func (net *GeneratorNet) Summary(batchSize int) (string, error) {
	return net.private.Summary(net.InputShape(batchSize))
}

func (net *GeneratorNet) String() string {
	return net.private.String()
}

// Fwd Initializates feedforward for provided input
//
// input - (batch x nz) or (batch x nz x 1 x 1) node
//
func (net *GeneratorNet) Fwd(input *gorgonia.Node) error {
	if input == nil {
		return errors.Wrap(ErrInvalidInputShape, "[Generator] input is nil")
	}
	var err error
	if input.Dims() == 2 {
		shp := input.Shape()
		input, err = gorgonia.Reshape(input, tensor.Shape{shp[0], shp[1], 1, 1})
		if err != nil {
			return errors.Wrap(err, "[Generator] Can't reshape latent input")
		}
	}
	shp := input.Shape()
	if shp.Dims() != 4 || !shp.Eq(net.InputShape(shp[0])) {
		return errors.Wrapf(ErrInvalidInputShape, "[Generator] expected (batch, %d, 1, 1), but got %v", net.Config.LatentSize, shp)
	}
	if err := net.private.Fwd(input); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	return nil
}

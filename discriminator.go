package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DiscriminatorNet Abstraction for discriminator part of DCGAN.
//
// Maps (batch x imchannel x imsize x imsize) images to (batch x outdim) scores
//
type DiscriminatorNet struct {
	Config  DiscriminatorConfig
	private *Network
	out     *gorgonia.Node
}

// NewDiscriminator Constructor for DiscriminatorNet. Weights are created on provided graph.
//
// initial conv 4x4/2 (imchannel -> width) -> activation
// extralayers x [conv 3x3/1 -> norm -> activation]
// while size > 4: conv 4x4/2 (c -> 2c) -> norm -> activation, extraconv x [conv 3x3/1 -> norm -> activation]
// final conv 4x4/1 without padding (c -> outdim) -> optional output activation
//
func NewDiscriminator(g *gorgonia.ExprGraph, cfg DiscriminatorConfig) (*DiscriminatorNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	b := newStackBuilder(g, "discriminator", cfg.Normalize, cfg.Activation)

	// input is bs x imchannel x imsize x imsize
	b.conv(fmt.Sprintf("initial.conv.%d-%d", cfg.ImageChannels, cfg.Width), cfg.ImageChannels, cfg.Width, 4, 2, 1)
	if err := b.activate(fmt.Sprintf("initial.%d", cfg.Width), cfg.Activation); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	csize, cndf := cfg.ImageSize/2, cfg.Width

	for t := 0; t < cfg.ExtraLayers; t++ {
		if err := b.refine(fmt.Sprintf("extra%d.%d", t, cndf), cndf); err != nil {
			return nil, errors.Wrap(err, "[Discriminator]")
		}
	}

	for csize > 4 {
		inFeat, outFeat := cndf, cndf*2
		b.conv(fmt.Sprintf("pyramid.%d-%d.conv", inFeat, outFeat), inFeat, outFeat, 4, 2, 1)
		if err := b.norm(fmt.Sprintf("pyramid.%d", outFeat), outFeat); err != nil {
			return nil, errors.Wrap(err, "[Discriminator]")
		}
		if err := b.activate(fmt.Sprintf("pyramid.%d", outFeat), cfg.Activation); err != nil {
			return nil, errors.Wrap(err, "[Discriminator]")
		}
		for t := 0; t < cfg.ExtraConv; t++ {
			if err := b.refine(fmt.Sprintf("pyramid.%d.extraconv%d", outFeat, t), outFeat); err != nil {
				return nil, errors.Wrap(err, "[Discriminator]")
			}
		}
		cndf = outFeat
		csize = csize / 2
	}

	// state size. K x 4 x 4
	b.conv(fmt.Sprintf("final.%d-%d.conv", cndf, cfg.OutDim), cndf, cfg.OutDim, 4, 1, 0)
	if cfg.OutActivation != ActivationNone {
		if err := b.activate(fmt.Sprintf("final.%d-%d", cndf, cfg.OutDim), cfg.OutActivation); err != nil {
			return nil, errors.Wrap(err, "[Discriminator]")
		}
	}

	return &DiscriminatorNet{
		Config: cfg,
		private: &Network{
			Name:     "discriminator",
			Layers:   b.layers,
			Replicas: cfg.NGPU,
		},
	}, nil
}

// Out Returns reference to output node
func (net *DiscriminatorNet) Out() *gorgonia.Node {
	return net.out
}

// Layers Returns layer stack
func (net *DiscriminatorNet) Layers() []*Layer {
	return net.private.Layers
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// NumParams Returns number of learnable scalars
func (net *DiscriminatorNet) NumParams() int {
	return net.private.NumParams()
}

// SetTraining Switches normalization into training mode
func (net *DiscriminatorNet) SetTraining() {
	net.private.SetTraining()
}

// SetTesting Switches normalization into inference mode
func (net *DiscriminatorNet) SetTesting() {
	net.private.SetTesting()
}

// InputShape Returns expected input shape for provided batch size
func (net *DiscriminatorNet) InputShape(batchSize int) tensor.Shape {
	return tensor.Shape{batchSize, net.Config.ImageChannels, net.Config.ImageSize, net.Config.ImageSize}
}

// OutShapes Returns shapes after every layer for provided batch size
func (net *DiscriminatorNet) OutShapes(batchSize int) ([]tensor.Shape, error) {
	return net.private.OutShapes(net.InputShape(batchSize))
}

// Summary Returns printable table of layers
func (net *DiscriminatorNet) Summary(batchSize int) (string, error) {
	return net.private.Summary(net.InputShape(batchSize))
}

func (net *DiscriminatorNet) String() string {
	return net.private.String()
}

// Fwd Initializates feedforward for provided input
//
// input - (batch x imchannel x imsize x imsize) node
// Output node has shape (batch x outdim)
//
func (net *DiscriminatorNet) Fwd(input *gorgonia.Node) error {
	if err := net.checkInput(input); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	if err := net.private.Fwd(input); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	batchSize := input.Shape()[0]
	out, err := gorgonia.Reshape(net.private.Out(), tensor.Shape{batchSize, net.Config.OutDim})
	if err != nil {
		return errors.Wrap(err, "[Discriminator] Can't reshape output")
	}
	net.out = out
	return nil
}

func (net *DiscriminatorNet) checkInput(input *gorgonia.Node) error {
	if input == nil {
		return errors.Wrap(ErrInvalidInputShape, "input is nil")
	}
	shp := input.Shape()
	if shp.Dims() != 4 || shp[1] != net.Config.ImageChannels || shp[2] != net.Config.ImageSize || shp[3] != net.Config.ImageSize {
		return errors.Wrapf(ErrInvalidInputShape, "expected (batch, %d, %d, %d), but got %v", net.Config.ImageChannels, net.Config.ImageSize, net.Config.ImageSize, shp)
	}
	return nil
}

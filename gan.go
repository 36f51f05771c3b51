package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GAN Generator and copy of Discriminator on the same graph. Used for Generator's training step.
//
// generatorPart - reference to Generator
// discriminatorPart - reference to Discriminator
// modifiedDiscriminator - copy of Discriminator's layers whose weights share values with Discriminator.
// Its learnables are not meant to be updated: solver for GAN should get GeneratorLearnables() only.
//
type GAN struct {
	generatorPart     *GeneratorNet
	discriminatorPart *DiscriminatorNet

	modifiedDiscriminator *Network

	out *gorgonia.Node
}

// NewGAN Couples Generator (defined on graph g) with Discriminator (defined on any graph, feedforward already done)
func NewGAN(g *gorgonia.ExprGraph, definedGenerator *GeneratorNet, definedDiscriminator *DiscriminatorNet) (*GAN, error) {
	if definedGenerator.Config.ImageSize != definedDiscriminator.Config.ImageSize || definedGenerator.Config.ImageChannels != definedDiscriminator.Config.ImageChannels {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "Generator produces (%d, %d, %d) images, but Discriminator takes (%d, %d, %d)",
			definedGenerator.Config.ImageChannels, definedGenerator.Config.ImageSize, definedGenerator.Config.ImageSize,
			definedDiscriminator.Config.ImageChannels, definedDiscriminator.Config.ImageSize, definedDiscriminator.Config.ImageSize,
		)
	}
	definedGAN := GAN{
		generatorPart:     definedGenerator,
		discriminatorPart: definedDiscriminator,
		modifiedDiscriminator: &Network{
			Name:     "gan_discriminator",
			Layers:   make([]*Layer, len(definedDiscriminator.Layers())),
			Replicas: definedDiscriminator.Config.NGPU,
		},
	}
	for i, l := range definedDiscriminator.Layers() {
		copied, err := l.clone(g, "gan_"+l.Name)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't copy Discriminator's layer #%d", i))
		}
		definedGAN.modifiedDiscriminator.Layers[i] = copied
	}
	return &definedGAN, nil
}

// Out Returns reference to output node (Discriminator's scores for generated samples)
func (net *GAN) Out() *gorgonia.Node {
	return net.out
}

// GeneratorOut Returns reference to output node of generator part
func (net *GAN) GeneratorOut() *gorgonia.Node {
	return net.generatorPart.Out()
}

// GeneratorLearnables Returns learnables nodes of generator part
func (net *GAN) GeneratorLearnables() gorgonia.Nodes {
	return net.generatorPart.Learnables()
}

// SetTraining Switches normalization of both parts into training mode
func (net *GAN) SetTraining() {
	net.generatorPart.SetTraining()
	net.modifiedDiscriminator.SetTraining()
}

// SetTesting Switches normalization of both parts into inference mode
func (net *GAN) SetTesting() {
	net.generatorPart.SetTesting()
	net.modifiedDiscriminator.SetTesting()
}

// Fwd Initializates feedforward for disciminator part of GAN
//
// Note: input node is not needed since input for Discriminator is just Generator's output
//
func (net *GAN) Fwd() error {
	if net.generatorPart.Out() == nil {
		return fmt.Errorf("[GAN] Generator's feedforward has not been initialized")
	}
	if err := net.modifiedDiscriminator.Fwd(net.generatorPart.Out()); err != nil {
		return errors.Wrap(err, "[GAN, Discriminator part]")
	}
	batchSize := net.generatorPart.Out().Shape()[0]
	out, err := gorgonia.Reshape(net.modifiedDiscriminator.Out(), tensor.Shape{batchSize, net.discriminatorPart.Config.OutDim})
	if err != nil {
		return errors.Wrap(err, "[GAN] Can't reshape output")
	}
	net.out = out
	return nil
}

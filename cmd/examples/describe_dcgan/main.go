package main

import (
	"flag"
	"fmt"
	"log"

	dcgan "github.com/LdDl/dcgan-go"
	"gorgonia.org/gorgonia"
)

var (
	imsize        = flag.Int("imsize", 64, "image size, power of two and multiple of 16")
	imchannel     = flag.Int("imchannel", 3, "number of image channels")
	nz            = flag.Int("nz", 100, "latent vector size")
	ndf           = flag.Int("ndf", 64, "discriminator base width")
	ngf           = flag.Int("ngf", 64, "generator base width")
	extralayers   = flag.Int("extralayers", 0, "number of constant resolution blocks")
	extraconv     = flag.Int("extraconv", 0, "number of constant resolution blocks after every pyramid step")
	activation    = flag.String("activation", "leakyrelu", "leakyrelu | relu | elu | selu | sigmoid | tanh")
	dNormalize    = flag.String("dnorm", "none", "discriminator normalization: none | batch | instance")
	gNormalize    = flag.String("gnorm", "batch", "generator normalization: none | batch | instance")
	outactivation = flag.String("outactivation", "none", "discriminator output activation")
	outdim        = flag.Int("outdim", 1, "discriminator output size")
	batchSize     = flag.Int("batch", 8, "batch size used for shapes")
)

func main() {
	flag.Parse()

	dCfg := dcgan.DefaultDiscriminatorConfig(*imsize, *imchannel, *ndf)
	dCfg.ExtraLayers = *extralayers
	dCfg.ExtraConv = *extraconv
	dCfg.Activation = dcgan.ActivationType(*activation)
	dCfg.Normalize = dcgan.NormalizationType(*dNormalize)
	dCfg.OutActivation = dcgan.ActivationType(*outactivation)
	dCfg.OutDim = *outdim

	gCfg := dcgan.DefaultGeneratorConfig(*imsize, *imchannel, *nz, *ngf)
	gCfg.ExtraLayers = *extralayers
	gCfg.ExtraConv = *extraconv
	gCfg.Activation = dcgan.ActivationType(*activation)
	gCfg.Normalize = dcgan.NormalizationType(*gNormalize)

	g := gorgonia.NewGraph()
	discriminator, err := dcgan.NewDiscriminator(g, dCfg)
	if err != nil {
		log.Fatalln(err)
	}
	generator, err := dcgan.NewGenerator(g, gCfg)
	if err != nil {
		log.Fatalln(err)
	}

	summary, err := discriminator.Summary(*batchSize)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println(summary)
	summary, err = generator.Summary(*batchSize)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println(summary)
}

package main

import (
	"flag"
	"log"
	"time"

	dcgan "github.com/LdDl/dcgan-go"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	configFile  = flag.String("config", "", "JSON configuration file. Built-in defaults are used when empty")
	saveConfig  = flag.String("save-config", "", "write effective configuration to this file and exit")
	numSamples  = flag.Int("samples", 256, "number of synthetic training images")
	numEpochs   = flag.Int("epochs", 0, "number of epochs (overrides configuration when > 0)")
	plotFile    = flag.String("plot", "losses.png", "file for loss chart")
	samplesFile = flag.String("out", "samples.png", "file for generated samples")
	clipValue   = flag.Float64("clip", 0.01, "critic weights clipping for 'wgan' loss")
)

func main() {
	flag.Parse()

	cfg := dcgan.DefaultConfig()
	var err error
	if *configFile != "" {
		cfg, err = dcgan.LoadConfig(*configFile)
		if err != nil {
			log.Fatalln(err)
		}
	}
	if *numEpochs > 0 {
		cfg.Epochs = *numEpochs
	}
	if cfg.Loss == dcgan.LossWasserstein && cfg.Discriminator.OutActivation != dcgan.ActivationNone {
		log.Printf("'%s' critic outputs raw scores: output activation '%s' is dropped\n", cfg.Loss, cfg.Discriminator.OutActivation)
		cfg.Discriminator.OutActivation = dcgan.ActivationNone
	}
	if err = cfg.Validate(); err != nil {
		log.Fatalln(err)
	}
	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			log.Fatalln(err)
		}
		log.Println("configuration saved to", *saveConfig)
		return
	}

	batchSize := cfg.BatchSize
	nz := cfg.Generator.LatentSize
	outdim := cfg.Discriminator.OutDim

	// Prepare synthetic data
	trainSet := dcgan.GenerateDiscSet(*numSamples, cfg.Generator.ImageSize, cfg.Generator.ImageChannels, cfg.Seed)
	sampler := dcgan.NewLatentSampler(dcgan.NoiseNormal, cfg.Seed+1)

	// Define graph for GAN feedforward and Generator training
	ganGraph := gorgonia.NewGraph()
	// Define graph for Discriminator training
	trainDiscriminatorGraph := gorgonia.NewGraph()

	// Define Generator on GAN's evaluation graph
	generator, err := dcgan.NewGenerator(ganGraph, cfg.Generator)
	if err != nil {
		log.Fatalln(err)
	}
	inputGenerator := gorgonia.NewTensor(ganGraph, gorgonia.Float64, 2, gorgonia.WithShape(batchSize, nz), gorgonia.WithName("generator_input"))
	if err = generator.Fwd(inputGenerator); err != nil {
		log.Fatalln(err)
	}

	// Define Discriminator on its own evaluation graph. First half of its batch is real, second half is generated
	discriminator, err := dcgan.NewDiscriminator(trainDiscriminatorGraph, cfg.Discriminator)
	if err != nil {
		log.Fatalln(err)
	}
	inputDiscriminator := gorgonia.NewTensor(trainDiscriminatorGraph, gorgonia.Float64, 4, gorgonia.WithShape(discriminator.InputShape(2*batchSize)...), gorgonia.WithName("discriminator_input"))
	if err = discriminator.Fwd(inputDiscriminator); err != nil {
		log.Fatalln(err)
	}

	// Define GAN on the same evaluation graph as Generator has been defined
	definedGAN, err := dcgan.NewGAN(ganGraph, generator, discriminator)
	if err != nil {
		log.Fatalln(err)
	}
	if err = definedGAN.Fwd(); err != nil {
		log.Fatalln(err)
	}

	var generatedSamples gorgonia.Value
	gorgonia.Read(definedGAN.GeneratorOut(), &generatedSamples)

	// Feedforward-only machine: compiled before gradients are defined
	tmGenerator := gorgonia.NewTapeMachine(ganGraph)
	defer tmGenerator.Close()

	// Losses
	targetDiscriminator := gorgonia.NewTensor(trainDiscriminatorGraph, gorgonia.Float64, 2, gorgonia.WithShape(2*batchSize, outdim), gorgonia.WithName("discriminator_target"))
	targetGAN := gorgonia.NewTensor(ganGraph, gorgonia.Float64, 2, gorgonia.WithShape(batchSize, outdim), gorgonia.WithName("gan_discriminator_target"))
	costDiscriminator, costGAN, err := defineLosses(cfg.Loss, discriminator.Out(), targetDiscriminator, definedGAN.Out(), targetGAN, batchSize)
	if err != nil {
		log.Fatalln(err)
	}
	if _, err = gorgonia.Grad(costDiscriminator, discriminator.Learnables()...); err != nil {
		log.Fatalln(err)
	}
	if _, err = gorgonia.Grad(costGAN, definedGAN.GeneratorLearnables()...); err != nil {
		log.Fatalln(err)
	}
	var costValDiscriminator, costValGAN gorgonia.Value
	gorgonia.Read(costDiscriminator, &costValDiscriminator)
	gorgonia.Read(costGAN, &costValGAN)

	tmDiscriminator := gorgonia.NewTapeMachine(trainDiscriminatorGraph, gorgonia.BindDualValues(discriminator.Learnables()...))
	defer tmDiscriminator.Close()
	solverDiscriminator := gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(2*batchSize)), gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithBeta1(0.5))

	tmGAN := gorgonia.NewTapeMachine(ganGraph, gorgonia.BindDualValues(definedGAN.GeneratorLearnables()...))
	defer tmGAN.Close()
	solverGAN := gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithBeta1(0.5))

	labelsDiscriminator := discriminatorLabels(batchSize, outdim)
	labelsGAN := tensor.Ones(tensor.Float64, batchSize, outdim)

	log.Printf("discriminator: %d parameters, generator: %d parameters\n", discriminator.NumParams(), generator.NumParams())

	dLosses := make([]float64, 0, cfg.Epochs)
	gLosses := make([]float64, 0, cfg.Epochs)
	batches := trainSet.DataLength / batchSize
	st := time.Now()
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for b := 0; b < batches; b++ {
			realSamples, err := trainSet.Batch(b*batchSize, (b+1)*batchSize)
			if err != nil {
				log.Fatalln(err)
			}

			/* Discriminator step */
			if err = gorgonia.Let(inputGenerator, sampler.Sample(batchSize, nz)); err != nil {
				log.Fatalln(err)
			}
			if err = tmGenerator.RunAll(); err != nil {
				log.Fatalln(err)
			}
			tmGenerator.Reset()
			disBatch, err := tensor.Concat(0, realSamples, generatedSamples.(*tensor.Dense))
			if err != nil {
				log.Fatalln(err)
			}
			if err = gorgonia.Let(inputDiscriminator, disBatch); err != nil {
				log.Fatalln(err)
			}
			if err = gorgonia.Let(targetDiscriminator, labelsDiscriminator); err != nil {
				log.Fatalln(err)
			}
			if err = tmDiscriminator.RunAll(); err != nil {
				log.Fatalln(err)
			}
			if err = solverDiscriminator.Step(gorgonia.NodesToValueGrads(discriminator.Learnables())); err != nil {
				log.Fatalln(err)
			}
			tmDiscriminator.Reset()
			if cfg.Loss == dcgan.LossWasserstein {
				clipWeights(discriminator.Learnables(), *clipValue)
			}

			/* Generator step through frozen copy of Discriminator */
			if err = gorgonia.Let(inputGenerator, sampler.Sample(batchSize, nz)); err != nil {
				log.Fatalln(err)
			}
			if err = gorgonia.Let(targetGAN, labelsGAN); err != nil {
				log.Fatalln(err)
			}
			if err = tmGAN.RunAll(); err != nil {
				log.Fatalln(err)
			}
			if err = solverGAN.Step(gorgonia.NodesToValueGrads(definedGAN.GeneratorLearnables())); err != nil {
				log.Fatalln(err)
			}
			tmGAN.Reset()

			dLosses = append(dLosses, costValDiscriminator.Data().(float64))
			gLosses = append(gLosses, costValGAN.Data().(float64))
		}
		last := len(dLosses) - 1
		if last >= 0 {
			log.Printf("epoch %d/%d: discriminator loss %.5f, generator loss %.5f (elapsed %v)\n", epoch+1, cfg.Epochs, dLosses[last], gLosses[last], time.Since(st))
		}
	}

	if err = dcgan.PlotLosses(dLosses, gLosses, *plotFile); err != nil {
		log.Fatalln(err)
	}
	log.Println("loss chart saved to", *plotFile)

	/* Sample with running statistics */
	generator.SetTesting()
	if err = gorgonia.Let(inputGenerator, sampler.Sample(batchSize, nz)); err != nil {
		log.Fatalln(err)
	}
	if err = tmGenerator.RunAll(); err != nil {
		log.Fatalln(err)
	}
	tmGenerator.Reset()
	if err = dcgan.SaveSamples(generatedSamples.(*tensor.Dense), 4, *samplesFile); err != nil {
		log.Fatalln(err)
	}
	log.Println("generated samples saved to", *samplesFile)
}

// defineLosses Returns cost nodes for Discriminator's graph and GAN's graph
func defineLosses(loss string, disOut, disTarget, ganOut, ganTarget *gorgonia.Node, batchSize int) (*gorgonia.Node, *gorgonia.Node, error) {
	switch loss {
	case dcgan.LossMSE:
		costDiscriminator, err := dcgan.MSELoss(disOut, disTarget)
		if err != nil {
			return nil, nil, err
		}
		costGAN, err := dcgan.MSELoss(ganOut, ganTarget)
		return costDiscriminator, costGAN, err
	case dcgan.LossWasserstein:
		real, err := gorgonia.Slice(disOut, dcgan.SlicerOneStep{StartIdx: 0, EndIdx: batchSize})
		if err != nil {
			return nil, nil, err
		}
		fake, err := gorgonia.Slice(disOut, dcgan.SlicerOneStep{StartIdx: batchSize, EndIdx: 2 * batchSize})
		if err != nil {
			return nil, nil, err
		}
		costDiscriminator, err := dcgan.WassersteinLoss(real, fake)
		if err != nil {
			return nil, nil, err
		}
		costGAN, err := dcgan.WassersteinGeneratorLoss(ganOut)
		return costDiscriminator, costGAN, err
	default:
		costDiscriminator, err := dcgan.BinaryCrossEntropyLoss(disOut, disTarget)
		if err != nil {
			return nil, nil, err
		}
		costGAN, err := dcgan.BinaryCrossEntropyLoss(ganOut, ganTarget)
		return costDiscriminator, costGAN, err
	}
}

// discriminatorLabels Ones for real half of batch, zeros for generated half
func discriminatorLabels(batchSize, outdim int) *tensor.Dense {
	data := make([]float64, 2*batchSize*outdim)
	for i := 0; i < batchSize*outdim; i++ {
		data[i] = 1
	}
	return tensor.New(tensor.WithShape(2*batchSize, outdim), tensor.WithBacking(data))
}

// clipWeights Keeps critic weights in [-limit; limit]
func clipWeights(nodes gorgonia.Nodes, limit float64) {
	for _, n := range nodes {
		t, ok := n.Value().(*tensor.Dense)
		if !ok {
			continue
		}
		data, ok := t.Data().([]float64)
		if !ok {
			continue
		}
		for i, v := range data {
			if v > limit {
				data[i] = limit
			} else if v < -limit {
				data[i] = -limit
			}
		}
	}
}

package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

const bceEpsilon = 1e-12

func reduce(n *gorgonia.Node, reduction []LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(n)
	case LossReductionMean:
		return gorgonia.Mean(n)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Least squares GAN objective when targets are 0/1 labels.
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return reduce(sqr, reduction)
}

// BinaryCrossEntropyLoss -[B*log(A) + (1-B)*log(1-A)]. A is expected to be in (0; 1), e.g. sigmoid output.
// Small epsilon keeps log() finite for saturated predictions.
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	eps := gorgonia.NewConstant(bceEpsilon)
	one := gorgonia.NewConstant(1.0)

	aEps, err := gorgonia.Add(a, eps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A+eps)")
	}
	logA, err := gorgonia.Log(aEps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	positive, err := gorgonia.HadamardProd(b, logA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (B.*log(A))")
	}

	oneMinusA, err := gorgonia.Sub(one, a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	oneMinusAEps, err := gorgonia.Add(oneMinusA, eps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A+eps)")
	}
	logOneMinusA, err := gorgonia.Log(oneMinusAEps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-A)")
	}
	oneMinusB, err := gorgonia.Sub(one, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B)")
	}
	negative, err := gorgonia.HadamardProd(oneMinusB, logOneMinusA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do ((1-B).*log(1-A))")
	}

	sum, err := gorgonia.Add(positive, negative)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	neg, err := gorgonia.Neg(sum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return reduce(neg, reduction)
}

// WassersteinLoss Critic objective mean(fake) - mean(real). Critic should have no output activation.
func WassersteinLoss(real, fake *gorgonia.Node) (*gorgonia.Node, error) {
	meanReal, err := gorgonia.Mean(real)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(real)")
	}
	meanFake, err := gorgonia.Mean(fake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(fake)")
	}
	return gorgonia.Sub(meanFake, meanReal)
}

// WassersteinGeneratorLoss Generator objective -mean(fake)
func WassersteinGeneratorLoss(fake *gorgonia.Node) (*gorgonia.Node, error) {
	meanFake, err := gorgonia.Mean(fake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(fake)")
	}
	return gorgonia.Neg(meanFake)
}

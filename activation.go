package dcgan_go

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node) (*gorgonia.Node, error)

// ActivationType Name of activation function as it appears in configuration
type ActivationType string

const (
	ActivationNone      = ActivationType("none")
	ActivationLeakyReLU = ActivationType("leakyrelu")
	ActivationReLU      = ActivationType("relu")
	ActivationELU       = ActivationType("elu")
	ActivationSELU      = ActivationType("selu")
	ActivationSigmoid   = ActivationType("sigmoid")
	ActivationTanh      = ActivationType("tanh")
)

const (
	leakySlope = 0.2
	seluAlpha  = 1.6732632423543772848170429916717
	seluScale  = 1.0507009873554804934193349852946
)

// GetActivation Returns activation function for provided name.
//
// 'none' is not an activation: callers have to check for it before calling this function.
//
func GetActivation(name ActivationType) (ActivationFunc, error) {
	switch name {
	case ActivationLeakyReLU:
		return LeakyRectify, nil
	case ActivationReLU:
		return Rectify, nil
	case ActivationELU:
		return ELU, nil
	case ActivationSELU:
		return SELU, nil
	case ActivationSigmoid:
		return Sigmoid, nil
	case ActivationTanh:
		return Tanh, nil
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "activation '%s' is not supported", name)
	}
}

func NoActivation(a *gorgonia.Node) (*gorgonia.Node, error) { return a, nil }
func Rectify(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }
func Sigmoid(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Sigmoid(a) }
func Tanh(a *gorgonia.Node) (*gorgonia.Node, error)         { return gorgonia.Tanh(a) }

// LeakyRectify max(0.2*x, x)
func LeakyRectify(a *gorgonia.Node) (*gorgonia.Node, error) { return gorgonia.LeakyRelu(a, leakySlope) }

// ELU See ref. https://arxiv.org/abs/1511.07289 (alpha = 1)
func ELU(a *gorgonia.Node) (*gorgonia.Node, error) { return exponentialLinear(a, 1.0, 1.0) }

// SELU See ref. https://arxiv.org/abs/1706.02515
func SELU(a *gorgonia.Node) (*gorgonia.Node, error) {
	return exponentialLinear(a, seluAlpha, seluScale)
}

// exponentialLinear scale * (max(0, x) + alpha * (exp(min(0, x)) - 1))
func exponentialLinear(a *gorgonia.Node, alpha, scale float64) (*gorgonia.Node, error) {
	positive, err := gorgonia.Rectify(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(0, x)")
	}
	negA, err := gorgonia.Neg(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -x")
	}
	rectNegA, err := gorgonia.Rectify(negA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(0, -x)")
	}
	// min(0, x) = -max(0, -x)
	negative, err := gorgonia.Neg(rectNegA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do min(0, x)")
	}
	expNegative, err := gorgonia.Exp(negative)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do exp(min(0, x))")
	}
	expm1, err := gorgonia.Sub(expNegative, gorgonia.NewConstant(1.0))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (X.-1)")
	}
	if alpha != 1.0 {
		expm1, err = gorgonia.Mul(gorgonia.NewConstant(alpha), expm1)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do (alpha*X)")
		}
	}
	retVal, err := gorgonia.Add(positive, expm1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	if scale != 1.0 {
		retVal, err = gorgonia.Mul(gorgonia.NewConstant(scale), retVal)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do (scale*X)")
		}
	}
	return retVal, nil
}

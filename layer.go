package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// LayerType Tag of layer descriptor
type LayerType uint16

const (
	LayerConvolutional = LayerType(iota)
	LayerConvTranspose
	LayerNormalization
	LayerActivation
)

func (t LayerType) String() string {
	switch t {
	case LayerConvolutional:
		return "conv"
	case LayerConvTranspose:
		return "convt"
	case LayerNormalization:
		return "norm"
	case LayerActivation:
		return "activation"
	default:
		return fmt.Sprintf("LayerType(%d)", uint16(t))
	}
}

const (
	weightsMean   = 0.0
	weightsStdDev = 0.02
)

// Layer Tagged layer descriptor. Which fields are meaningful depends on Type:
//
// LayerConvolutional, LayerConvTranspose - WeightNode, BiasNode (optional), channels, kernel, padding, stride, dilation
// LayerNormalization - Normalization, OutChannels, Momentum, Epsilon, GammaNode/BetaNode (batch only)
// LayerActivation - ActivationType, Activation
//
// Name is fully qualified (network name included) and is used as prefix for every node created for this layer.
//
type Layer struct {
	Name string
	Type LayerType

	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node

	InChannels   int
	OutChannels  int
	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int

	Normalization NormalizationType
	Momentum      float64
	Epsilon       float64
	GammaNode     *gorgonia.Node
	BetaNode      *gorgonia.Node

	ActivationType ActivationType
	Activation     ActivationFunc

	// Number of times layer has been connected to graph. Used to keep per-call node names unique
	calls int
	// Running statistics of batch normalization, shared with clones
	stats *normStatistics
}

// NewConvLayer Creates square convolution layer with weights (out x in x kernel x kernel) on provided graph
func NewConvLayer(g *gorgonia.ExprGraph, name string, in, out, kernel, stride, padding int, bias bool) *Layer {
	return newKernelLayer(g, LayerConvolutional, name, in, out, kernel, stride, padding, bias)
}

// NewConvTransposeLayer Creates square transposed convolution layer.
//
// Weights are kept in layout of equivalent stride-1 convolution (out x in x kernel x kernel)
// See ConvTransposeKernel for conversion from (in x out x kernel x kernel) layout.
//
func NewConvTransposeLayer(g *gorgonia.ExprGraph, name string, in, out, kernel, stride, padding int, bias bool) *Layer {
	return newKernelLayer(g, LayerConvTranspose, name, in, out, kernel, stride, padding, bias)
}

func newKernelLayer(g *gorgonia.ExprGraph, layerType LayerType, name string, in, out, kernel, stride, padding int, bias bool) *Layer {
	l := &Layer{
		Name:         name,
		Type:         layerType,
		InChannels:   in,
		OutChannels:  out,
		KernelHeight: kernel,
		KernelWidth:  kernel,
		Padding:      []int{padding, padding},
		Stride:       []int{stride, stride},
		Dilation:     []int{1, 1},
		WeightNode: gorgonia.NewTensor(g, gorgonia.Float64, 4,
			gorgonia.WithShape(out, in, kernel, kernel),
			gorgonia.WithName(name+".weight"),
			gorgonia.WithInit(gorgonia.Gaussian(weightsMean, weightsStdDev)),
		),
	}
	if bias {
		l.BiasNode = gorgonia.NewTensor(g, gorgonia.Float64, 4,
			gorgonia.WithShape(1, out, 1, 1),
			gorgonia.WithName(name+".bias"),
			gorgonia.WithInit(gorgonia.Zeroes()),
		)
	}
	return l
}

// NewActivationLayer Wraps activation function into layer
func NewActivationLayer(name string, activation ActivationType) (*Layer, error) {
	fn, err := GetActivation(activation)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't create layer '%s'", name)
	}
	return &Layer{
		Name:           name,
		Type:           LayerActivation,
		ActivationType: activation,
		Activation:     fn,
	}, nil
}

// Fwd Connects layer to provided input node
func (l *Layer) Fwd(input *gorgonia.Node) (*gorgonia.Node, error) {
	defer func() { l.calls++ }()
	switch l.Type {
	case LayerConvolutional:
		if l.WeightNode == nil {
			return nil, fmt.Errorf("Layer '%s' WeightNode is nil", l.Name)
		}
		out, err := gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't convolve[2D] input by kernel of layer '%s'", l.Name)
		}
		return l.addBias(out)
	case LayerConvTranspose:
		if l.WeightNode == nil {
			return nil, fmt.Errorf("Layer '%s' WeightNode is nil", l.Name)
		}
		out, err := l.convTranspose(input)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't transposed-convolve[2D] input by kernel of layer '%s'", l.Name)
		}
		return l.addBias(out)
	case LayerNormalization:
		return l.normalize(input)
	case LayerActivation:
		if l.Activation == nil {
			return nil, fmt.Errorf("Layer '%s' has no activation function", l.Name)
		}
		out, err := l.Activation(input)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't apply activation function '%s' of layer '%s'", l.ActivationType, l.Name)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Layer '%s' type '%d' (uint16) is not handled", l.Name, l.Type)
	}
}

func (l *Layer) addBias(out *gorgonia.Node) (*gorgonia.Node, error) {
	if l.BiasNode == nil {
		return out, nil
	}
	biased, err := gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't add bias to output of layer '%s'", l.Name)
	}
	return biased, nil
}

// OutShape Infers output shape of layer for provided input shape without touching graph
func (l *Layer) OutShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "layer '%s' expects 4-D input, but got %v", l.Name, in)
	}
	switch l.Type {
	case LayerConvolutional, LayerConvTranspose:
		if in[1] != l.InChannels {
			return nil, errors.Wrapf(ErrInvalidInputShape, "layer '%s' expects %d channels, but got %v", l.Name, l.InChannels, in)
		}
		kernel := []int{l.KernelHeight, l.KernelWidth}
		out := tensor.Shape{in[0], l.OutChannels, 0, 0}
		for i := 0; i < 2; i++ {
			span := l.Dilation[i]*(kernel[i]-1) + 1
			if l.Type == LayerConvolutional {
				out[2+i] = (in[2+i]+2*l.Padding[i]-span)/l.Stride[i] + 1
			} else {
				out[2+i] = (in[2+i]-1)*l.Stride[i] - 2*l.Padding[i] + span
			}
			if out[2+i] <= 0 || (l.Type == LayerConvolutional && in[2+i]+2*l.Padding[i] < span) {
				return nil, errors.Wrapf(ErrInvalidGeometry, "layer '%s' can't produce output from input %v", l.Name, in)
			}
		}
		return out, nil
	case LayerNormalization:
		if in[1] != l.OutChannels {
			return nil, errors.Wrapf(ErrInvalidInputShape, "layer '%s' expects %d channels, but got %v", l.Name, l.OutChannels, in)
		}
		return in.Clone(), nil
	case LayerActivation:
		return in.Clone(), nil
	default:
		return nil, fmt.Errorf("Layer '%s' type '%d' (uint16) is not handled", l.Name, l.Type)
	}
}

// Learnables Returns learnables nodes
func (l *Layer) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2)
	for _, n := range []*gorgonia.Node{l.WeightNode, l.BiasNode, l.GammaNode, l.BetaNode} {
		if n != nil {
			learnables = append(learnables, n)
		}
	}
	return learnables
}

// NumParams Returns number of learnable scalars
func (l *Layer) NumParams() int {
	total := 0
	for _, n := range l.Learnables() {
		total += n.Shape().TotalSize()
	}
	return total
}

func (l *Layer) String() string {
	switch l.Type {
	case LayerConvolutional, LayerConvTranspose:
		return fmt.Sprintf("%s %d->%d k%dx%d s%d p%d bias=%t", l.Type, l.InChannels, l.OutChannels, l.KernelHeight, l.KernelWidth, l.Stride[0], l.Padding[0], l.BiasNode != nil)
	case LayerNormalization:
		return fmt.Sprintf("%snorm %d", l.Normalization, l.OutChannels)
	case LayerActivation:
		return string(l.ActivationType)
	default:
		return l.Type.String()
	}
}

// clone Copies layer onto graph g under new name. Weight nodes of copy share values with the source,
// so updates of source weights made by solver are visible through the copy.
func (l *Layer) clone(g *gorgonia.ExprGraph, name string) (*Layer, error) {
	copied := &Layer{
		Name:           name,
		Type:           l.Type,
		InChannels:     l.InChannels,
		OutChannels:    l.OutChannels,
		KernelHeight:   l.KernelHeight,
		KernelWidth:    l.KernelWidth,
		Padding:        l.Padding,
		Stride:         l.Stride,
		Dilation:       l.Dilation,
		Normalization:  l.Normalization,
		Momentum:       l.Momentum,
		Epsilon:        l.Epsilon,
		ActivationType: l.ActivationType,
		Activation:     l.Activation,
		stats:          l.stats,
	}
	var err error
	if copied.WeightNode, err = shareNode(g, l.WeightNode, name+".weight"); err != nil {
		return nil, err
	}
	if copied.BiasNode, err = shareNode(g, l.BiasNode, name+".bias"); err != nil {
		return nil, err
	}
	if copied.GammaNode, err = shareNode(g, l.GammaNode, name+".gamma"); err != nil {
		return nil, err
	}
	if copied.BetaNode, err = shareNode(g, l.BetaNode, name+".beta"); err != nil {
		return nil, err
	}
	return copied, nil
}

func shareNode(g *gorgonia.ExprGraph, n *gorgonia.Node, name string) (*gorgonia.Node, error) {
	if n == nil {
		return nil, nil
	}
	if n.Value() == nil {
		return nil, fmt.Errorf("Node '%s' has no value to share", n.Name())
	}
	return gorgonia.NewTensor(g, gorgonia.Float64, n.Dims(), gorgonia.WithShape(n.Shape()...), gorgonia.WithName(name), gorgonia.WithValue(n.Value())), nil
}

package dcgan_go

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// stackBuilder Accumulates layers of one network. Convolutions get bias only when there is no normalization.
type stackBuilder struct {
	g          *gorgonia.ExprGraph
	scope      string
	normalize  NormalizationType
	activation ActivationType
	layers     []*Layer
}

func newStackBuilder(g *gorgonia.ExprGraph, scope string, normalize NormalizationType, activation ActivationType) *stackBuilder {
	return &stackBuilder{
		g:          g,
		scope:      scope,
		normalize:  normalize,
		activation: activation,
	}
}

func (b *stackBuilder) bias() bool {
	return b.normalize == NormalizationNone
}

func (b *stackBuilder) qualified(name string) string {
	return b.scope + "." + name
}

func (b *stackBuilder) conv(name string, in, out, kernel, stride, padding int) {
	b.layers = append(b.layers, NewConvLayer(b.g, b.qualified(name), in, out, kernel, stride, padding, b.bias()))
}

func (b *stackBuilder) convTranspose(name string, in, out, kernel, stride, padding int) {
	b.layers = append(b.layers, NewConvTransposeLayer(b.g, b.qualified(name), in, out, kernel, stride, padding, b.bias()))
}

// norm Appends normalization unless it is 'none'. Layer is named '<prefix>.<kind>norm'
func (b *stackBuilder) norm(prefix string, channels int) error {
	if b.normalize == NormalizationNone {
		return nil
	}
	l, err := GetNormalization(b.g, b.normalize, channels, b.qualified(fmt.Sprintf("%s.%snorm", prefix, b.normalize)))
	if err != nil {
		return err
	}
	b.layers = append(b.layers, l)
	return nil
}

// activate Appends activation layer named '<prefix>.<activation>'
func (b *stackBuilder) activate(prefix string, activation ActivationType) error {
	l, err := NewActivationLayer(b.qualified(fmt.Sprintf("%s.%s", prefix, activation)), activation)
	if err != nil {
		return err
	}
	b.layers = append(b.layers, l)
	return nil
}

// refine Appends constant resolution block: conv 3x3 stride 1 padding 1, normalization, activation
func (b *stackBuilder) refine(prefix string, channels int) error {
	b.conv(prefix+".conv", channels, channels, 3, 1, 1)
	if err := b.norm(prefix, channels); err != nil {
		return err
	}
	return b.activate(prefix, b.activation)
}

package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// convTranspose Transposed convolution expressed as stride-1 convolution:
//
// 1. insert (stride-1) zeros between input elements and pad by (kernel-1-padding) on every side
// 2. convolve with kernel stored in equivalent-convolution layout
//
// With stride 1 there is nothing to insert, so step 1 collapses to convolution padding.
//
func (l *Layer) convTranspose(input *gorgonia.Node) (*gorgonia.Node, error) {
	if input.Dims() != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "layer '%s' expects 4-D input, but got %v", l.Name, input.Shape())
	}
	kernel := []int{l.KernelHeight, l.KernelWidth}
	pads := make([]int, 2)
	for i := range pads {
		pads[i] = l.Dilation[i]*(kernel[i]-1) - l.Padding[i]
		if pads[i] < 0 {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "layer '%s' padding %d exceeds kernel span", l.Name, l.Padding[i])
		}
	}
	if l.Stride[0] == 1 && l.Stride[1] == 1 {
		return gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, pads, []int{1, 1}, l.Dilation)
	}
	prefix := fmt.Sprintf("%s.r%d", l.Name, l.calls)
	dilated, err := zeroInsert(input, prefix, l.Stride, pads)
	if err != nil {
		return nil, errors.Wrap(err, "Can't insert zeros between input elements")
	}
	return gorgonia.Conv2d(dilated, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, []int{0, 0}, []int{1, 1}, l.Dilation)
}

// zeroInsert Spreads (N, C, H, W) input onto (N, C, (H-1)*sH+1+2*pH, (W-1)*sW+1+2*pW) grid.
// Both axes are handled by multiplication with constant 0/1 scatter matrices.
func zeroInsert(input *gorgonia.Node, prefix string, stride, pads []int) (*gorgonia.Node, error) {
	g := input.Graph()
	shp := input.Shape()
	n, c, h, w := shp[0], shp[1], shp[2], shp[3]
	hOut := (h-1)*stride[0] + 1 + 2*pads[0]
	wOut := (w-1)*stride[1] + 1 + 2*pads[1]

	scatterW := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(w, wOut), gorgonia.WithName(prefix+".scatter_w"), gorgonia.WithValue(scatterMatrix(w, wOut, stride[1], pads[1])))
	scatterH := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(h, hOut), gorgonia.WithName(prefix+".scatter_h"), gorgonia.WithValue(scatterMatrix(h, hOut, stride[0], pads[0])))

	// Columns: (N*C*H, W) x (W, W')
	rows, err := gorgonia.Reshape(input, tensor.Shape{n * c * h, w})
	if err != nil {
		return nil, err
	}
	spreadW, err := gorgonia.Mul(rows, scatterW)
	if err != nil {
		return nil, err
	}
	planes, err := gorgonia.Reshape(spreadW, tensor.Shape{n * c, h, wOut})
	if err != nil {
		return nil, err
	}
	// Rows: swap H and W' so H becomes the last axis, then (N*C*W', H) x (H, H')
	planesT, err := gorgonia.Transpose(planes, 0, 2, 1)
	if err != nil {
		return nil, err
	}
	cols, err := gorgonia.Reshape(planesT, tensor.Shape{n * c * wOut, h})
	if err != nil {
		return nil, err
	}
	spreadH, err := gorgonia.Mul(cols, scatterH)
	if err != nil {
		return nil, err
	}
	planes, err = gorgonia.Reshape(spreadH, tensor.Shape{n * c, wOut, hOut})
	if err != nil {
		return nil, err
	}
	planesT, err = gorgonia.Transpose(planes, 0, 2, 1)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(planesT, tensor.Shape{n, c, hOut, wOut})
}

// scatterMatrix (in x out) matrix with single 1 per row: row i maps to column pad + i*stride
func scatterMatrix(in, out, stride, pad int) *tensor.Dense {
	data := make([]float64, in*out)
	for i := 0; i < in; i++ {
		data[i*out+pad+i*stride] = 1
	}
	return tensor.New(tensor.WithShape(in, out), tensor.WithBacking(data))
}

// ConvTransposeKernel Converts transposed convolution weights from (in x out x kH x kW) layout
// into layout of equivalent stride-1 convolution (out x in x kH x kW) which is used by LayerConvTranspose.
// Channels are swapped and every kernel is flipped along both spatial axes.
func ConvTransposeKernel(weights *tensor.Dense) (*tensor.Dense, error) {
	shp := weights.Shape()
	if shp.Dims() != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "kernel must have 4 dimensions, but got %v", shp)
	}
	data, ok := weights.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("kernel must hold float64 values, but got %v", weights.Dtype())
	}
	in, out, kh, kw := shp[0], shp[1], shp[2], shp[3]
	converted := make([]float64, len(data))
	for c := 0; c < in; c++ {
		for o := 0; o < out; o++ {
			for a := 0; a < kh; a++ {
				for b := 0; b < kw; b++ {
					src := ((c*out+o)*kh+a)*kw + b
					dst := ((o*in+c)*kh+(kh-1-a))*kw + (kw - 1 - b)
					converted[dst] = data[src]
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(out, in, kh, kw), tensor.WithBacking(converted)), nil
}

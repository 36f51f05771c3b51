package dcgan_go

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Layers - simple sequence of layers, immutable after construction
// Replicas - number of batch shards the stack is run on (<= 1 means single pass)
// out - alias to output of last layer
//
type Network struct {
	Name     string
	Layers   []*Layer
	Replicas int
	out      *gorgonia.Node
}

// Out Returns reference to output node
func (net *Network) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			learnables = append(learnables, l.Learnables()...)
		}
	}
	return learnables
}

// NumParams Returns number of learnable scalars
func (net *Network) NumParams() int {
	total := 0
	for _, l := range net.Layers {
		total += l.NumParams()
	}
	return total
}

// Fwd Initializates feedforward for provided input
//
// input - Input node. With Replicas > 1 it is split along batch axis and every shard goes through the whole stack
//
func (net *Network) Fwd(input *gorgonia.Node) error {
	if len(net.Layers) == 0 {
		return fmt.Errorf("Network must have one layer atleast")
	}
	if input == nil {
		return fmt.Errorf("Network's input is nil")
	}
	out, err := net.fwdParallel(input)
	if err != nil {
		return err
	}
	net.out = out
	return nil
}

// fwdStack Feedforwards input through every layer once
func (net *Network) fwdStack(input *gorgonia.Node) (*gorgonia.Node, error) {
	last := input
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		call := l.calls
		out, err := l.Fwd(last)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Network, Layer #%d] Can't feedforward input", i))
		}
		gorgonia.WithName(fmt.Sprintf("%s.out.r%d", l.Name, call))(out)
		last = out
	}
	return last, nil
}

// OutShapes Infers shape after every layer for provided input shape. Graph is not touched.
func (net *Network) OutShapes(in tensor.Shape) ([]tensor.Shape, error) {
	shapes := make([]tensor.Shape, 0, len(net.Layers))
	current := in
	for i, l := range net.Layers {
		next, err := l.OutShape(current)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Network, Layer #%d]", i))
		}
		shapes = append(shapes, next)
		current = next
	}
	return shapes, nil
}

// SetTraining Switches every batch normalization layer into training mode:
// batch statistics are used and accumulated into running statistics.
func (net *Network) SetTraining() {
	for _, l := range net.Layers {
		if l.stats != nil {
			l.stats.training = true
		}
	}
}

// SetTesting Switches every batch normalization layer into inference mode (running statistics)
func (net *Network) SetTesting() {
	for _, l := range net.Layers {
		if l.stats != nil {
			l.stats.training = false
		}
	}
}

// Summary Table of layers with output shapes for provided input shape
func (net *Network) Summary(in tensor.Shape) (string, error) {
	shapes, err := net.OutShapes(in)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s == input %v\n", net.Name, in)
	for i, l := range net.Layers {
		fmt.Fprintf(&sb, "%3d: %-48s %-36s %v\n", i, l.Name, l.String(), shapes[i])
	}
	fmt.Fprintf(&sb, "learnable parameters: %d\n", net.NumParams())
	return sb.String(), nil
}

func (net *Network) String() string {
	str := make([]string, 0, len(net.Layers)+1)
	str = append(str, fmt.Sprintf("== %s ==", net.Name))
	for i, l := range net.Layers {
		str = append(str, fmt.Sprintf("%3d: %-48s %s", i, l.Name, l))
	}
	return strings.Join(str, "\n")
}

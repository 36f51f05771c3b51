package dcgan_go

import (
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// normStatistics Running per-channel statistics of batch normalization layer.
//
// In training mode every forward pass blends batch statistics into running ones:
// running = momentum*running + (1-momentum)*batch (variance is unbiased).
// In inference mode running statistics replace batch statistics.
//
type normStatistics struct {
	momentum float64
	training bool
	mean     *tensor.Dense
	variance *tensor.Dense
}

func newNormStatistics(channels int, momentum float64) *normStatistics {
	ones := make([]float64, channels)
	for i := range ones {
		ones[i] = 1
	}
	return &normStatistics{
		momentum: momentum,
		training: true,
		mean:     tensor.New(tensor.WithShape(1, channels, 1, 1), tensor.WithBacking(make([]float64, channels))),
		variance: tensor.New(tensor.WithShape(1, channels, 1, 1), tensor.WithBacking(ones)),
	}
}

// trackStatsOp Passes batch statistic through while training and accumulates it into running one.
// While testing it returns running statistic instead. Gradient is passed through as is.
type trackStatsOp struct {
	stats      *normStatistics
	running    *tensor.Dense
	correction float64
	kind       string
}

// trackStatistic Connects (1 x C x 1 x 1) batch statistic node to running statistic
func trackStatistic(batchStat *gorgonia.Node, stats *normStatistics, kind string, correction float64) (*gorgonia.Node, error) {
	op := &trackStatsOp{stats: stats, correction: correction, kind: kind}
	switch kind {
	case "mean":
		op.running = stats.mean
	case "variance":
		op.running = stats.variance
	default:
		return nil, fmt.Errorf("Statistic '%s' is not tracked", kind)
	}
	if !batchStat.Shape().Eq(op.running.Shape()) {
		return nil, errors.Wrapf(ErrInvalidInputShape, "statistic '%s' must have shape %v, but got %v", kind, op.running.Shape(), batchStat.Shape())
	}
	return gorgonia.ApplyOp(op, batchStat)
}

func (op *trackStatsOp) Arity() int { return 1 }

func (op *trackStatsOp) Type() hm.Type {
	return hm.NewFnType(hm.TypeVariable('a'), hm.TypeVariable('a'))
}

func (op *trackStatsOp) InferShape(ns ...gorgonia.DimSizer) (tensor.Shape, error) {
	if len(ns) != 1 {
		return nil, fmt.Errorf("Op '%s' expects 1 input, but got %d", op, len(ns))
	}
	shp, ok := ns[0].(tensor.Shape)
	if !ok {
		return nil, fmt.Errorf("Op '%s' can't infer shape from %T", op, ns[0])
	}
	return shp.Clone(), nil
}

func (op *trackStatsOp) Do(values ...gorgonia.Value) (gorgonia.Value, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("Op '%s' expects 1 input, but got %d", op, len(values))
	}
	in, ok := values[0].(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Op '%s' expects *tensor.Dense, but got %T", op, values[0])
	}
	batch, ok := in.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Op '%s' supports float64 only, but got %v", op, in.Dtype())
	}
	running := op.running.Data().([]float64)
	if len(batch) != len(running) {
		return nil, errors.Wrapf(ErrInvalidInputShape, "op '%s' got %d values for %d channels", op, len(batch), len(running))
	}
	out := make([]float64, len(batch))
	if op.stats.training {
		m := op.stats.momentum
		for i, v := range batch {
			running[i] = m*running[i] + (1-m)*op.correction*v
		}
		copy(out, batch)
	} else {
		copy(out, running)
	}
	return tensor.New(tensor.WithShape(in.Shape().Clone()...), tensor.WithBacking(out)), nil
}

func (op *trackStatsOp) ReturnsPtr() bool     { return false }
func (op *trackStatsOp) CallsExtern() bool    { return false }
func (op *trackStatsOp) OverwritesInput() int { return -1 }

func (op *trackStatsOp) WriteHash(h hash.Hash) {
	fmt.Fprintf(h, "trackstats-%s-%p", op.kind, op.running)
}

func (op *trackStatsOp) Hashcode() uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func (op *trackStatsOp) String() string { return "trackstats-" + op.kind }

func (op *trackStatsOp) DiffWRT(inputs int) []bool { return []bool{true} }

func (op *trackStatsOp) SymDiff(inputs gorgonia.Nodes, output, grad *gorgonia.Node) (gorgonia.Nodes, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("Op '%s' expects 1 input, but got %d", op, len(inputs))
	}
	return gorgonia.Nodes{grad}, nil
}

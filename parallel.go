package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// batchChunks Splits batch of 'batchSize' samples into at most 'replicas' contiguous chunks.
// Chunk size is ceil(batchSize/replicas), so the last chunk may be smaller and fewer chunks may be produced.
func batchChunks(batchSize, replicas int) []SlicerOneStep {
	if replicas < 1 {
		replicas = 1
	}
	chunkSize := (batchSize + replicas - 1) / replicas
	chunks := make([]SlicerOneStep, 0, replicas)
	for start := 0; start < batchSize; start += chunkSize {
		end := start + chunkSize
		if end > batchSize {
			end = batchSize
		}
		chunks = append(chunks, SlicerOneStep{StartIdx: start, EndIdx: end})
	}
	return chunks
}

// fwdParallel Runs the stack once per batch shard on shared weights and concatenates outputs along batch axis.
// Batch normalization therefore gathers statistics per shard.
func (net *Network) fwdParallel(input *gorgonia.Node) (*gorgonia.Node, error) {
	if net.Replicas <= 1 || input.Dims() == 0 {
		return net.fwdStack(input)
	}
	shp := input.Shape()
	chunks := batchChunks(shp[0], net.Replicas)
	if len(chunks) == 1 {
		return net.fwdStack(input)
	}
	outs := make(gorgonia.Nodes, 0, len(chunks))
	for i, chunk := range chunks {
		shard, err := gorgonia.Slice(input, chunk)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't slice replica #%d [%d:%d] of input", i, chunk.Start(), chunk.End()))
		}
		// Slicing may drop unit batch axis
		shardShape := shp.Clone()
		shardShape[0] = chunk.End() - chunk.Start()
		shard, err = gorgonia.Reshape(shard, shardShape)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't reshape replica #%d of input", i))
		}
		out, err := net.fwdStack(shard)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Replica #%d]", i))
		}
		outs = append(outs, out)
	}
	gathered, err := gorgonia.Concat(0, outs...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't gather replicas' outputs")
	}
	return gathered, nil
}

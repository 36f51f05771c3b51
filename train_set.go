package dcgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// ImageSet Images stacked into (DataLength x channels x size x size) tensor with values in [-1; 1]
type ImageSet struct {
	TrainData  *tensor.Dense
	DataLength int
}

// NewImageSet Wraps 4-D tensor
func NewImageSet(data *tensor.Dense) (*ImageSet, error) {
	if data.Dims() != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "images must have 4 dimensions, but got %v", data.Shape())
	}
	return &ImageSet{
		TrainData:  data,
		DataLength: data.Shape()[0],
	}, nil
}

// Batch Returns copy of images [start; end) as contiguous (end-start x C x H x W) tensor
func (set *ImageSet) Batch(start, end int) (*tensor.Dense, error) {
	if start < 0 || end > set.DataLength || start >= end {
		return nil, fmt.Errorf("Bad batch bounds [%d; %d) for %d images", start, end, set.DataLength)
	}
	view, err := set.TrainData.Slice(SlicerOneStep{StartIdx: start, EndIdx: end})
	if err != nil {
		return nil, errors.Wrap(err, "Can't slice images")
	}
	batch, ok := view.Materialize().(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Materialized batch is not *tensor.Dense")
	}
	shp := set.TrainData.Shape().Clone()
	shp[0] = end - start
	// Slicing drops unit batch axis
	if err := batch.Reshape(shp...); err != nil {
		return nil, errors.Wrap(err, "Can't reshape batch")
	}
	return batch, nil
}

// GenerateDiscSet Synthetic images of filled discs with random center and radius.
// Disc pixels are 1, background is -1. Every channel carries the same disc.
func GenerateDiscSet(numSamples, imsize, imchannel int, seed uint64) *ImageSet {
	src := rand.NewSource(seed)
	center := distuv.Uniform{Min: 0.25 * float64(imsize), Max: 0.75 * float64(imsize), Src: src}
	radius := distuv.Uniform{Min: 0.15 * float64(imsize), Max: 0.35 * float64(imsize), Src: src}
	plane := imsize * imsize
	data := make([]float64, numSamples*imchannel*plane)
	for i := 0; i < numSamples; i++ {
		cx, cy, r := center.Rand(), center.Rand(), radius.Rand()
		for y := 0; y < imsize; y++ {
			for x := 0; x < imsize; x++ {
				dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
				v := -1.0
				if dx*dx+dy*dy <= r*r {
					v = 1.0
				}
				for c := 0; c < imchannel; c++ {
					data[(i*imchannel+c)*plane+y*imsize+x] = v
				}
			}
		}
	}
	return &ImageSet{
		TrainData:  tensor.New(tensor.WithShape(numSamples, imchannel, imsize, imsize), tensor.WithBacking(data)),
		DataLength: numSamples,
	}
}

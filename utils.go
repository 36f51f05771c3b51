package dcgan_go

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// SlicerOneStep Just iterator with step size = 1
type SlicerOneStep struct {
	StartIdx, EndIdx int
}

func (s SlicerOneStep) Start() int { return s.StartIdx }
func (s SlicerOneStep) End() int   { return s.EndIdx }
func (s SlicerOneStep) Step() int  { return 1 }

type NoiseDistribution uint16

const (
	NoiseNormal = NoiseDistribution(iota)
	NoiseUniform
)

// LatentSampler Source of latent vectors for Generator.
// Normal noise is N(0, 1), uniform noise is U(-1, 1).
type LatentSampler struct {
	Distribution NoiseDistribution
	normal       distuv.Normal
	uniform      distuv.Uniform
}

// NewLatentSampler Returns sampler seeded with provided value
func NewLatentSampler(distribution NoiseDistribution, seed uint64) *LatentSampler {
	src := rand.NewSource(seed)
	return &LatentSampler{
		Distribution: distribution,
		normal:       distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform:      distuv.Uniform{Min: -1, Max: 1, Src: src},
	}
}

// Sample Return reference to tensor.Dense of shape (batchSize x n)
func (s *LatentSampler) Sample(batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		switch s.Distribution {
		case NoiseUniform:
			data[i] = s.uniform.Rand()
		default:
			data[i] = s.normal.Rand()
		}
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// Sample4D Same as Sample, but shaped (batchSize x n x 1 x 1)
func (s *LatentSampler) Sample4D(batchSize, n int) (*tensor.Dense, error) {
	samples := s.Sample(batchSize, n)
	if err := samples.Reshape(batchSize, n, 1, 1); err != nil {
		return nil, errors.Wrap(err, "Can't reshape latent samples")
	}
	return samples, nil
}

// PlotLosses Plot chart of Discriminator's and Generator's losses per step
func PlotLosses(dLosses, gLosses []float64, fname string) error {
	p := plot.New()
	p.Title.Text = "DCGAN losses"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())
	series := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"discriminator", dLosses, color.RGBA{R: 255, B: 128, A: 255}},
		{"generator", gLosses, color.RGBA{G: 128, B: 255, A: 255}},
	}
	for _, s := range series {
		if len(s.values) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.values))
		for i, v := range s.values {
			xys[i].X = float64(i)
			xys[i].Y = v
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't init line for '%s'", s.name))
		}
		line.Color = s.color
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// ImageGrid Arranges (N x C x H x W) samples with values in [-1; 1] into grid with 'cols' columns.
// One channel gives grayscale, three channels give RGB, otherwise first channel is used.
func ImageGrid(samples *tensor.Dense, cols int) (*image.RGBA, error) {
	shp := samples.Shape()
	if shp.Dims() != 4 {
		return nil, errors.Wrapf(ErrInvalidInputShape, "samples must have 4 dimensions, but got %v", shp)
	}
	data, ok := samples.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("samples must hold float64 values, but got %v", samples.Dtype())
	}
	n, c, h, w := shp[0], shp[1], shp[2], shp[3]
	if cols <= 0 || cols > n {
		cols = n
	}
	rows := (n + cols - 1) / cols
	grid := image.NewRGBA(image.Rect(0, 0, cols*w, rows*h))
	toByte := func(v float64) uint8 {
		return uint8(math.Round((math.Max(-1, math.Min(1, v)) + 1) * 127.5))
	}
	at := func(i, ch, y, x int) float64 {
		return data[((i*c+ch)*h+y)*w+x]
	}
	for i := 0; i < n; i++ {
		ox, oy := (i%cols)*w, (i/cols)*h
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				px := color.RGBA{A: 255}
				if c == 3 {
					px.R, px.G, px.B = toByte(at(i, 0, y, x)), toByte(at(i, 1, y, x)), toByte(at(i, 2, y, x))
				} else {
					v := toByte(at(i, 0, y, x))
					px.R, px.G, px.B = v, v, v
				}
				grid.SetRGBA(ox+x, oy+y, px)
			}
		}
	}
	return grid, nil
}

// SaveSamples Renders grid of samples (see ImageGrid) into file. Format is picked by extension
func SaveSamples(samples *tensor.Dense, cols int, fname string) error {
	grid, err := ImageGrid(samples, cols)
	if err != nil {
		return errors.Wrap(err, "Can't arrange samples")
	}
	bounds := grid.Bounds()
	p := plot.New()
	p.HideAxes()
	p.Add(plotter.NewImage(grid, 0, 0, float64(bounds.Dx()), float64(bounds.Dy())))
	if err := p.Save(4*vg.Inch, vg.Length(4*float64(bounds.Dy())/float64(bounds.Dx()))*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save samples")
	}
	return nil
}

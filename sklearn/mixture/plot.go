package mixture

import (
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// NewDensityPlot draws a normalised histogram of x overlaid with the fitted
// mixture density of d.
func NewDensityPlot(d Density, x []float64, bins int) (*plot.Plot, error) {
	if len(x) == 0 {
		return nil, errors.NewModelError("NewDensityPlot", "empty data", errors.ErrEmptyData)
	}
	if bins < 1 {
		return nil, errors.NewValidationError("bins", "must be at least 1", bins)
	}
	components := d.Components()
	if len(components) == 0 {
		return nil, errors.NewNotFittedError("Density", "NewDensityPlot")
	}

	p := plot.New()
	p.Title.Text = "Mixture density"
	p.X.Label.Text = "value"
	p.Y.Label.Text = "density"

	hist, err := plotter.NewHist(plotter.Values(x), bins)
	if err != nil {
		return nil, errors.Wrap(err, "histogram")
	}
	hist.Normalize(1)
	p.Add(hist)

	density := plotter.NewFunction(func(v float64) float64 {
		logp := make([]float64, len(components))
		for k, c := range components {
			logp[k] = ComponentLogProb(c, v)
		}
		return math.Exp(errors.LogSumExp(logp))
	})
	density.Color = color.RGBA{R: 200, A: 255}
	density.Width = vg.Points(2)
	density.Samples = 200
	p.Add(density)
	p.Legend.Add("data", hist)
	p.Legend.Add("mixture", density)

	return p, nil
}

// SaveDensityPlot writes the density plot to path; the format follows the
// file extension (png, svg, pdf, ...).
func SaveDensityPlot(d Density, x []float64, bins int, path string) error {
	p, err := NewDensityPlot(d, x, bins)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save density plot %s", path)
	}
	return nil
}

// WriteDensityPlot encodes the density plot in format to w.
func WriteDensityPlot(d Density, x []float64, bins int, format string, w io.Writer) error {
	p, err := NewDensityPlot(d, x, bins)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return errors.Wrapf(err, "density plot format %s", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write density plot")
	}
	return nil
}

package utils

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotSamples draws the left and right output levels of interleaved
// stereo samples against time in milliseconds and saves the plot to
// filename, in the image format named by its extension.
func PlotSamples(filename string, samples []int32, rate int) error {
	p := plot.New()
	p.Title.Text = "Output"
	p.X.Label.Text = "Time (ms)"
	p.Y.Label.Text = "Amplitude"

	n := len(samples) / 2
	left, right := make(plotter.XYs, n), make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		ms := float64(i) * 1000 / float64(rate)
		left[i] = plotter.XY{X: ms, Y: float64(samples[2*i])}
		right[i] = plotter.XY{X: ms, Y: float64(samples[2*i+1])}
	}

	l, err := plotter.NewLine(left)
	if err != nil {
		return fmt.Errorf("utils: plotting left: %w", err)
	}
	r, err := plotter.NewLine(right)
	if err != nil {
		return fmt.Errorf("utils: plotting right: %w", err)
	}
	r.Color = color.RGBA{R: 0xC0, A: 0xFF}
	r.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}

	p.Add(l, r)
	p.Legend.Add("left", l)
	p.Legend.Add("right", r)

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}

package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/artifact"
	"github.com/banshee-data/tmr-encoder/internal/units"
)

const histogramBins = 30

var (
	errorColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	meanColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	spreadColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// ErrorPlot draws reconstruction error against true angle, in unit.
func ErrorPlot(res analysis.SweepResult, unit string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Angle error, %s", res.Geometry)
	p.X.Label.Text = "True angle (°)"
	p.Y.Label.Text = fmt.Sprintf("Error (%s)", unit)

	pts := make(plotter.XYs, 0, len(res.Points))
	for _, pt := range res.Points {
		if pt.Degenerate {
			continue
		}
		pts = append(pts, plotter.XY{X: pt.TrueDeg, Y: units.ConvertAngle(pt.ErrorDeg, unit)})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("sweep of %s has no reconstructed angles to plot", res.Geometry)
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = errorColor
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	return p, nil
}

// Histogram draws the distribution of one Monte Carlo metric with dashed mean
// and dotted p01/p99 markers.
func Histogram(metric string, values []float64, st analysis.MetricStats) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Distribution of %s", metric)
	p.X.Label.Text = metric
	p.Y.Label.Text = "Frequency"

	hist, err := plotter.NewHist(plotter.Values(values), histogramBins)
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", metric, err)
	}
	hist.FillColor = color.RGBA{R: 31, G: 119, B: 180, A: 180}
	p.Add(hist)

	top := 0.0
	for _, b := range hist.Bins {
		top = max(top, b.Weight)
	}

	markers := []struct {
		label  string
		x      float64
		color  color.Color
		dashes []vg.Length
	}{
		{fmt.Sprintf("Mean: %.6g", st.Mean), st.Mean, meanColor, []vg.Length{vg.Points(6), vg.Points(3)}},
		{fmt.Sprintf("1st percentile: %.6g", st.P01), st.P01, spreadColor, []vg.Length{vg.Points(1), vg.Points(2)}},
		{fmt.Sprintf("99th percentile: %.6g", st.P99), st.P99, spreadColor, []vg.Length{vg.Points(1), vg.Points(2)}},
	}
	for _, m := range markers {
		l, err := plotter.NewLine(plotter.XYs{{X: m.x, Y: 0}, {X: m.x, Y: top}})
		if err != nil {
			return nil, err
		}
		l.Color = m.color
		l.Width = vg.Points(2)
		l.Dashes = m.dashes
		p.Add(l)
		p.Legend.Add(m.label, l)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// BarChart draws one bar per label.
func BarChart(title, yLabel string, labels []string, values []float64) (*plot.Plot, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("bar chart %q: %d labels for %d values", title, len(labels), len(values))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("bar chart %q has no data", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(30))
	if err != nil {
		return nil, err
	}
	bars.Color = errorColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(labels...)
	return p, nil
}

// SavePNG renders p at the standard report size into sink under name.
func SavePNG(sink artifact.Sink, name string, p *plot.Plot) error {
	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return writeTo(sink, name, wt)
}

func writeTo(sink artifact.Sink, name string, wt io.WriterTo) error {
	w, err := sink.Create(name)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return w.Close()
}

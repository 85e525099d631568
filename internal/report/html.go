package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/units"
)

// SweepPage renders an interactive error-versus-angle chart for one sweep.
func SweepPage(w io.Writer, res analysis.SweepResult, unit string) error {
	x := make([]string, 0, len(res.Points))
	y := make([]opts.LineData, 0, len(res.Points))
	for _, p := range res.Points {
		if p.Degenerate {
			continue
		}
		x = append(x, fmt.Sprintf("%.3f", p.TrueDeg))
		y = append(y, opts.LineData{Value: units.ConvertAngle(p.ErrorDeg, unit)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Angle Sweep", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Reconstruction error, %s", res.Geometry),
			Subtitle: fmt.Sprintf("p99 |error| %.4g° (%.2f bits), %d degenerate", res.Stats.P99AbsError, res.Stats.ResolutionBitsP99, res.Degenerate),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "True angle (°)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Error (%s)", unit), NameLocation: "middle", NameGap: 50}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).AddSeries("error", y, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// ComparisonPage renders bar charts of p99 resolution and error for every
// array and scenario in c.
func ComparisonPage(w io.Writer, c analysis.Comparative) error {
	if len(c.Rows) == 0 {
		return fmt.Errorf("no comparative rows to render")
	}
	x := make([]string, len(c.Rows))
	bits := make([]opts.BarData, len(c.Rows))
	errs := make([]opts.BarData, len(c.Rows))
	for i, r := range c.Rows {
		x[i] = fmt.Sprintf("%s / %s", r.Array, r.Scenario)
		bits[i] = opts.BarData{Value: r.ResolutionBitsP99}
		errs[i] = opts.BarData{Value: r.ErrorP99}
	}

	bitsBar := charts.NewBar()
	bitsBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Monte Carlo Comparison", Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Resolution (p99, bits)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bitsBar.SetXAxis(x).AddSeries(analysis.MetricResolutionBitsP99, bits,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	errBar := charts.NewBar()
	errBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Error (p99, degrees)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	errBar.SetXAxis(x).AddSeries(analysis.MetricErrorP99, errs)

	page := components.NewPage()
	page.AddCharts(bitsBar, errBar)
	return page.Render(w)
}

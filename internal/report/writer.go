package report

import (
	"bytes"
	"fmt"
	"path"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/artifact"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
)

// ComparativeDir is where WriteComparative puts cross-array artifacts.
const ComparativeDir = "comparative_analysis"

// ScenarioDir is the directory of one array/scenario pair, e.g.
// "Standard_8_7/failures_1".
func ScenarioDir(s analysis.ScenarioSummary) string {
	return path.Join(s.Array.Label(), fmt.Sprintf("failures_%d", s.Scenario.Failures))
}

// WriteScenario writes the run table, raw results, statistics, text summary
// and metric histograms of one scenario.
func WriteScenario(sink artifact.Sink, s analysis.ScenarioSummary) error {
	dir := ScenarioDir(s)
	if err := sink.MkdirAll(dir); err != nil {
		return err
	}

	if err := WriteJSON(sink, path.Join(dir, "mc_results.json"), s.Runs); err != nil {
		return err
	}
	if err := WriteJSON(sink, path.Join(dir, "mc_stats.json"), s.Stats); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := NewCSVWriter(&buf).WriteRuns(s.Runs); err != nil {
		return fmt.Errorf("runs csv: %w", err)
	}
	if err := sink.WriteFile(path.Join(dir, "mc_runs.csv"), buf.Bytes()); err != nil {
		return err
	}

	summary, err := ScenarioSummary(s)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if err := sink.WriteFile(path.Join(dir, "mc_summary.txt"), []byte(summary)); err != nil {
		return err
	}

	for _, metric := range analysis.Metrics {
		values := make([]float64, len(s.Runs))
		for i, r := range s.Runs {
			values[i], _ = r.Metric(metric)
		}
		p, err := Histogram(metric, values, s.Stats[metric])
		if err != nil {
			monitoring.Logf("[report] skipping histogram %s for %s: %v", metric, dir, err)
			continue
		}
		if err := SavePNG(sink, path.Join(dir, "histogram_"+metric+".png"), p); err != nil {
			return err
		}
	}
	return nil
}

// comparedMetrics are charted across arrays and scenarios.
var comparedMetrics = []string{analysis.MetricErrorP99, analysis.MetricResolutionBitsP99}

// WriteComparative writes the comparison charts, table and HTML page.
func WriteComparative(sink artifact.Sink, c analysis.Comparative, claimBits, faultBits float64) error {
	if err := sink.MkdirAll(ComparativeDir); err != nil {
		return err
	}

	for _, metric := range comparedMetrics {
		value := func(r analysis.ComparativeRow) float64 {
			if metric == analysis.MetricErrorP99 {
				return r.ErrorP99
			}
			return r.ResolutionBitsP99
		}

		var labels []string
		var values []float64
		perArray := make(map[string][]analysis.ComparativeRow)
		var arrays []string
		for _, r := range c.Rows {
			if r.Failures == 0 {
				labels = append(labels, r.Array)
				values = append(values, value(r))
			}
			if _, ok := perArray[r.Array]; !ok {
				arrays = append(arrays, r.Array)
			}
			perArray[r.Array] = append(perArray[r.Array], r)
		}

		if len(values) > 0 {
			p, err := BarChart(fmt.Sprintf("Comparison of %s across configurations (no failures)", metric), metric, labels, values)
			if err != nil {
				return err
			}
			if err := SavePNG(sink, path.Join(ComparativeDir, "config_comparison_"+metric+".png"), p); err != nil {
				return err
			}
		}

		for _, array := range arrays {
			rows := perArray[array]
			if len(rows) < 2 {
				continue
			}
			labels := make([]string, len(rows))
			values := make([]float64, len(rows))
			for i, r := range rows {
				labels[i] = r.Scenario
				values[i] = value(r)
			}
			p, err := BarChart(fmt.Sprintf("Fault tolerance: %s for %s", metric, array), metric, labels, values)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("fault_tolerance_%s_%s.png", artifact.SafeName(array), metric)
			if err := SavePNG(sink, path.Join(ComparativeDir, name), p); err != nil {
				return err
			}
		}
	}

	summary, err := ComparativeSummary(c, claimBits, faultBits)
	if err != nil {
		return fmt.Errorf("render comparative summary: %w", err)
	}
	if err := sink.WriteFile(path.Join(ComparativeDir, "comparative_summary.txt"), []byte(summary)); err != nil {
		return err
	}
	if err := WriteJSON(sink, path.Join(ComparativeDir, "comparative.json"), c); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := ComparisonPage(&html, c); err != nil {
		return err
	}
	return sink.WriteFile(path.Join(ComparativeDir, "comparison.html"), html.Bytes())
}

// WriteSweep writes base.csv, base.png and base.html for one sweep.
func WriteSweep(sink artifact.Sink, base string, res analysis.SweepResult, unit string) error {
	var csvBuf bytes.Buffer
	if err := NewCSVWriter(&csvBuf).WriteSweep(res, unit); err != nil {
		return err
	}
	if err := sink.WriteFile(base+".csv", csvBuf.Bytes()); err != nil {
		return err
	}

	p, err := ErrorPlot(res, unit)
	if err != nil {
		return err
	}
	if err := SavePNG(sink, base+".png", p); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := SweepPage(&html, res, unit); err != nil {
		return err
	}
	return sink.WriteFile(base+".html", html.Bytes())
}

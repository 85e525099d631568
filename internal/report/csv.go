// Package report writes sweep and Monte Carlo results as CSV, JSON, text
// summaries, PNG plots and HTML charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/units"
)

// CSVWriter wraps csv.Writer with methods for sweep and run output.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSVWriter on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// WriteSweep writes one row per swept angle. The error column is expressed in
// unit; angles stay in degrees.
func (c *CSVWriter) WriteSweep(res analysis.SweepResult, unit string) error {
	if !units.IsValid(unit) {
		return fmt.Errorf("invalid unit %q, want one of %s", unit, units.GetValidUnitsString())
	}
	header := []string{"true_deg", "angle_deg", "error_" + unit, "resolution_bits", "sector", "fundamental_phase_deg", "harmonic_phase_deg", "degenerate", "underdetermined"}
	if err := c.w.Write(header); err != nil {
		return err
	}
	for _, p := range res.Points {
		row := []string{
			formatFloat(p.TrueDeg),
			formatFloat(p.AngleDeg),
			formatFloat(units.ConvertAngle(p.ErrorDeg, unit)),
			formatFloat(p.ResolutionBits),
			strconv.Itoa(p.Sector),
			formatFloat(p.FundamentalPhaseDeg),
			formatFloat(p.HarmonicPhaseDeg),
			strconv.FormatBool(p.Degenerate),
			strconv.FormatBool(p.Underdetermined),
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// WriteRuns writes one row per Monte Carlo run.
func (c *CSVWriter) WriteRuns(runs []analysis.RunResult) error {
	header := []string{"run_id", "run_index", "config_name", "num_sensors", "pole_pairs", "num_failures", "failed_sensors",
		"fundamental_amplitude", "harmonic_amplitude", "noise_level", "degenerate", "underdetermined"}
	header = append(header, analysis.Metrics...)
	if err := c.w.Write(header); err != nil {
		return err
	}
	for _, r := range runs {
		failed := make([]string, len(r.FailedSensors))
		for i, s := range r.FailedSensors {
			failed[i] = strconv.Itoa(s)
		}
		row := []string{
			r.ID,
			strconv.Itoa(r.RunIndex),
			r.ConfigName,
			strconv.Itoa(r.Sensors),
			strconv.Itoa(r.PolePairs),
			strconv.Itoa(r.Failures),
			strings.Join(failed, " "),
			formatFloat(r.Parameters.FundamentalAmplitude),
			formatFloat(r.Parameters.HarmonicAmplitude),
			formatFloat(r.Parameters.NoiseLevel),
			strconv.Itoa(r.Degenerate),
			strconv.Itoa(r.Underdetermined),
		}
		for _, m := range analysis.Metrics {
			v, err := r.Metric(m)
			if err != nil {
				return err
			}
			row = append(row, formatFloat(v))
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

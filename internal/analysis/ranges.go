// Package analysis sweeps an encoder geometry through rotations, summarises
// the reconstruction error and runs Monte Carlo studies over parameter
// tolerances and sensor failures.
package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

// maxSweepSteps bounds how many angles one sweep may allocate.
const maxSweepSteps = 10_000_000

// SweepSpec is an evenly spaced set of mechanical angles from StartDeg up to,
// but not including, EndDeg.
type SweepSpec struct {
	StartDeg float64 `json:"start_deg"`
	EndDeg   float64 `json:"end_deg"`
	Steps    int     `json:"steps"`
}

// FullRotation returns a sweep of steps angles over one revolution.
func FullRotation(steps int) SweepSpec {
	return SweepSpec{StartDeg: 0, EndDeg: 360, Steps: steps}
}

// ParseRangeSpec parses a "start:end:steps" string into a SweepSpec.
func ParseRangeSpec(s string) (SweepSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SweepSpec{}, fmt.Errorf("invalid range format %q: expected start:end:steps", s)
	}

	start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return SweepSpec{}, fmt.Errorf("invalid start value %q: %w", parts[0], err)
	}

	end, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return SweepSpec{}, fmt.Errorf("invalid end value %q: %w", parts[1], err)
	}

	steps, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return SweepSpec{}, fmt.Errorf("invalid steps value %q: %w", parts[2], err)
	}

	spec := SweepSpec{StartDeg: start, EndDeg: end, Steps: steps}
	if err := spec.Validate(); err != nil {
		return SweepSpec{}, err
	}
	return spec, nil
}

// Validate checks the sweep is non-empty and bounded.
func (s SweepSpec) Validate() error {
	if s.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", s.Steps)
	}
	if s.Steps > maxSweepSteps {
		return fmt.Errorf("steps %d exceeds limit of %d", s.Steps, maxSweepSteps)
	}
	if s.EndDeg <= s.StartDeg {
		return fmt.Errorf("end %g must be greater than start %g", s.EndDeg, s.StartDeg)
	}
	return nil
}

// Angles returns the sweep's angles. The slice is empty for an invalid spec.
func (s SweepSpec) Angles() []float64 {
	if s.Validate() != nil {
		return nil
	}
	step := (s.EndDeg - s.StartDeg) / float64(s.Steps)
	out := make([]float64, s.Steps)
	for i := range out {
		out[i] = s.StartDeg + float64(i)*step
	}
	return out
}

// ParseIndexList parses a comma-separated list of sensor indices, as given to
// the -fail flags. Returns nil, nil for empty input.
func ParseIndexList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid sensor index '%s': %w", p, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("sensor index must be non-negative, got %d", v)
		}
		out = append(out, v)
	}
	return out, nil
}

package analysis

import (
	"context"
	"fmt"

	"github.com/banshee-data/tmr-encoder/internal/config"
	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
)

// Claim is one pass/fail check of a measured value against a threshold.
type Claim struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// ScenarioSummary is the Monte Carlo outcome of one array under one fault
// scenario.
type ScenarioSummary struct {
	Array    config.ArraySpec       `json:"array"`
	Scenario config.FaultScenario   `json:"scenario"`
	Runs     []RunResult            `json:"-"`
	Stats    map[string]MetricStats `json:"stats"`
	Claims   []Claim                `json:"claims"`

	// TheoreticalBits is the resolution the array should reach on the
	// configured single-sensor front end.
	TheoreticalBits float64 `json:"theoretical_bits"`
}

// Summarise aggregates runs and checks them against cfg's claim thresholds.
func Summarise(cfg *config.AnalysisConfig, array config.ArraySpec, scenario config.FaultScenario, runs []RunResult) ScenarioSummary {
	s := ScenarioSummary{
		Array:           array,
		Scenario:        scenario,
		Runs:            runs,
		Stats:           Aggregate(runs),
		TheoreticalBits: encoder.TheoreticalResolutionBits(cfg.GetBaseResolutionBits(), array.Sensors, array.PolePairs),
	}
	s.Claims = CheckClaims(cfg, s)
	return s
}

// CheckClaims validates the mean p99 resolution of a scenario. Every scenario
// is checked against the resolution claim; faulted scenarios are also checked
// against the fault-tolerance minimum.
func CheckClaims(cfg *config.AnalysisConfig, s ScenarioSummary) []Claim {
	bits := s.Stats[MetricResolutionBitsP99].Mean
	claims := []Claim{{
		Name:      "resolution",
		Value:     bits,
		Threshold: cfg.GetResolutionClaimBits(),
		Passed:    bits >= cfg.GetResolutionClaimBits(),
	}}
	if s.Scenario.Failures > 0 {
		claims = append(claims, Claim{
			Name:      fmt.Sprintf("fault tolerance with %d failed sensors", s.Scenario.Failures),
			Value:     bits,
			Threshold: cfg.GetFaultToleranceMinBits(),
			Passed:    bits >= cfg.GetFaultToleranceMinBits(),
		})
	}
	return claims
}

// ComparativeRow is one array × scenario line of the comparison table.
type ComparativeRow struct {
	Array             string  `json:"array"`
	Scenario          string  `json:"scenario"`
	Failures          int     `json:"failures"`
	ResolutionBitsP99 float64 `json:"resolution_bits_p99"`
	ErrorP99          float64 `json:"error_p99"`
}

// ArrayVerdict is the overall claim outcome for one array.
type ArrayVerdict struct {
	Array string `json:"array"`
	// Resolution is nil when the array had no failure-free scenario.
	Resolution *Claim `json:"resolution,omitempty"`
	// MaxToleratedFailures is the largest failure count whose mean p99
	// resolution stayed at or above the fault-tolerance minimum.
	MaxToleratedFailures int `json:"max_tolerated_failures"`
}

// FaultTolerant reports whether the array survived at least one failure.
func (v ArrayVerdict) FaultTolerant() bool { return v.MaxToleratedFailures > 0 }

// Comparative compares every studied array and scenario.
type Comparative struct {
	Rows     []ComparativeRow `json:"rows"`
	Verdicts []ArrayVerdict   `json:"verdicts"`
}

// Compare builds the comparison across summaries, keeping array order.
func Compare(cfg *config.AnalysisConfig, summaries []ScenarioSummary) Comparative {
	var c Comparative
	verdicts := make(map[string]*ArrayVerdict)
	var order []string

	for _, s := range summaries {
		bits := s.Stats[MetricResolutionBitsP99].Mean
		c.Rows = append(c.Rows, ComparativeRow{
			Array:             s.Array.Name,
			Scenario:          s.Scenario.Name,
			Failures:          s.Scenario.Failures,
			ResolutionBitsP99: bits,
			ErrorP99:          s.Stats[MetricErrorP99].Mean,
		})

		v, ok := verdicts[s.Array.Name]
		if !ok {
			v = &ArrayVerdict{Array: s.Array.Name}
			verdicts[s.Array.Name] = v
			order = append(order, s.Array.Name)
		}
		if s.Scenario.Failures == 0 {
			v.Resolution = &Claim{
				Name:      "resolution",
				Value:     bits,
				Threshold: cfg.GetResolutionClaimBits(),
				Passed:    bits >= cfg.GetResolutionClaimBits(),
			}
		} else if bits >= cfg.GetFaultToleranceMinBits() && s.Scenario.Failures > v.MaxToleratedFailures {
			v.MaxToleratedFailures = s.Scenario.Failures
		}
	}
	for _, name := range order {
		c.Verdicts = append(c.Verdicts, *verdicts[name])
	}
	return c
}

// Comprehensive runs the Monte Carlo study for every configured array and
// fault scenario, skipping scenarios that leave too few spare sensors.
// onScenario, if non-nil, is called as each scenario completes so results can
// be written incrementally; an error from it stops the study.
func Comprehensive(ctx context.Context, cfg *config.AnalysisConfig, onScenario func(ScenarioSummary) error) ([]ScenarioSummary, Comparative, error) {
	mc := NewMonteCarlo(cfg)
	var summaries []ScenarioSummary

	for _, array := range cfg.GetArrays() {
		for _, scenario := range cfg.GetFaultScenarios() {
			if !cfg.ShouldRun(array, scenario) {
				monitoring.Logf("[montecarlo] skipping %s for %s: insufficient sensors", scenario.Name, array.Name)
				continue
			}
			runs, err := mc.Run(ctx, array, scenario.Failures)
			if err != nil {
				return summaries, Comparative{}, fmt.Errorf("%s, %s: %w", array.Label(), scenario.Name, err)
			}
			s := Summarise(cfg, array, scenario, runs)
			if onScenario != nil {
				if err := onScenario(s); err != nil {
					return summaries, Comparative{}, err
				}
			}
			summaries = append(summaries, s)
		}
	}
	return summaries, Compare(cfg, summaries), nil
}

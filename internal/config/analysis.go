package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// ArraySpec names one sensor array under study.
type ArraySpec struct {
	Name      string `json:"name"`
	Sensors   int    `json:"sensors"`
	PolePairs int    `json:"pole_pairs"`
}

// Geometry returns the golden-angle geometry for the array.
func (a ArraySpec) Geometry() (encoder.Geometry, error) {
	return encoder.NewGoldenGeometry(a.Sensors, a.PolePairs)
}

// Label is the directory-friendly "Name_N_P" form.
func (a ArraySpec) Label() string {
	return fmt.Sprintf("%s_%d_%d", a.Name, a.Sensors, a.PolePairs)
}

// FaultScenario is a named number of failed sensors.
type FaultScenario struct {
	Name     string `json:"name"`
	Failures int    `json:"failures"`
}

// ToleranceConfig holds the relative spreads applied to each Monte Carlo run.
type ToleranceConfig struct {
	Fundamental *float64 `json:"fundamental,omitempty"`
	Harmonic    *float64 `json:"harmonic,omitempty"`
	Noise       *float64 `json:"noise,omitempty"`
}

// AnalysisConfig is the root configuration for sweeps and Monte Carlo studies.
// Every field is optional; Get* methods supply defaults for unset fields.
type AnalysisConfig struct {
	// Run control
	Runs       *int    `json:"runs,omitempty"`
	AngleSteps *int    `json:"angle_steps,omitempty"`
	Seed       *uint64 `json:"seed,omitempty"`
	Workers    *int    `json:"workers,omitempty"`

	// Signal model
	FundamentalAmplitude *float64 `json:"fundamental_amplitude,omitempty"`
	HarmonicAmplitude    *float64 `json:"harmonic_amplitude,omitempty"`
	NoiseLevel           *float64 `json:"noise_level,omitempty"`
	ADCBits              *int     `json:"adc_bits,omitempty"`
	ADCFullScale         *float64 `json:"adc_full_scale,omitempty"`
	DriftAmplitude       *float64 `json:"drift_amplitude,omitempty"`

	Tolerances *ToleranceConfig `json:"tolerances,omitempty"`

	// Study matrix
	Arrays          []ArraySpec     `json:"arrays,omitempty"`
	FaultScenarios  []FaultScenario `json:"fault_scenarios,omitempty"`
	MinSpareSensors *int            `json:"min_spare_sensors,omitempty"`

	// Claim thresholds
	ResolutionClaimBits   *float64 `json:"resolution_claim_bits,omitempty"`
	FaultToleranceMinBits *float64 `json:"fault_tolerance_min_bits,omitempty"`
	BaseResolutionBits    *float64 `json:"base_resolution_bits,omitempty"`
}

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *AnalysisConfig) Validate() error {
	if c.Runs != nil && *c.Runs < 1 {
		return fmt.Errorf("runs must be positive, got %d", *c.Runs)
	}
	if c.AngleSteps != nil && *c.AngleSteps < 1 {
		return fmt.Errorf("angle_steps must be positive, got %d", *c.AngleSteps)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.MinSpareSensors != nil && *c.MinSpareSensors < 0 {
		return fmt.Errorf("min_spare_sensors must be non-negative, got %d", *c.MinSpareSensors)
	}
	if c.Tolerances != nil {
		for name, v := range map[string]*float64{
			"fundamental": c.Tolerances.Fundamental,
			"harmonic":    c.Tolerances.Harmonic,
			"noise":       c.Tolerances.Noise,
		} {
			if v != nil && (*v < 0 || *v >= 1) {
				return fmt.Errorf("tolerances.%s must be in [0, 1), got %f", name, *v)
			}
		}
	}

	if err := c.SignalModel().Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, a := range c.Arrays {
		if a.Name == "" {
			return fmt.Errorf("array with %d sensors has no name", a.Sensors)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate array name %q", a.Name)
		}
		seen[a.Name] = true
		if _, err := a.Geometry(); err != nil {
			return fmt.Errorf("array %q: %w", a.Name, err)
		}
	}
	for _, s := range c.FaultScenarios {
		if s.Failures < 0 {
			return fmt.Errorf("fault scenario %q has negative failures", s.Name)
		}
	}
	return nil
}

// GetRuns returns the Monte Carlo run count per scenario.
func (c *AnalysisConfig) GetRuns() int {
	if c.Runs == nil {
		return 50
	}
	return *c.Runs
}

// GetAngleSteps returns the number of angles in one full-rotation sweep.
func (c *AnalysisConfig) GetAngleSteps() int {
	if c.AngleSteps == nil {
		return 360
	}
	return *c.AngleSteps
}

// GetSeed returns the base random seed.
func (c *AnalysisConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetWorkers returns the worker count; 0 means one per CPU.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// SignalModel assembles the nominal signal model from the configured fields.
func (c *AnalysisConfig) SignalModel() signalsim.Model {
	m := signalsim.DefaultModel()
	if c.FundamentalAmplitude != nil {
		m.FundamentalAmplitude = *c.FundamentalAmplitude
	}
	if c.HarmonicAmplitude != nil {
		m.HarmonicAmplitude = *c.HarmonicAmplitude
	}
	if c.NoiseLevel != nil {
		m.NoiseLevel = *c.NoiseLevel
	}
	if c.ADCBits != nil {
		m.ADCBits = *c.ADCBits
	}
	if c.ADCFullScale != nil {
		m.FullScale = *c.ADCFullScale
	}
	if c.DriftAmplitude != nil {
		m.DriftAmplitude = *c.DriftAmplitude
	}
	return m
}

// GetTolerances returns the per-run parameter spreads.
func (c *AnalysisConfig) GetTolerances() signalsim.Tolerances {
	tol := signalsim.Tolerances{Fundamental: 0.1, Harmonic: 0.1, Noise: 0.2}
	if c.Tolerances == nil {
		return tol
	}
	if c.Tolerances.Fundamental != nil {
		tol.Fundamental = *c.Tolerances.Fundamental
	}
	if c.Tolerances.Harmonic != nil {
		tol.Harmonic = *c.Tolerances.Harmonic
	}
	if c.Tolerances.Noise != nil {
		tol.Noise = *c.Tolerances.Noise
	}
	return tol
}

// GetArrays returns the arrays to study.
func (c *AnalysisConfig) GetArrays() []ArraySpec {
	if len(c.Arrays) == 0 {
		return []ArraySpec{
			{Name: "Standard", Sensors: 8, PolePairs: 7},
			{Name: "Medium", Sensors: 12, PolePairs: 11},
			{Name: "High", Sensors: 16, PolePairs: 17},
			{Name: "Fault-Tolerant", Sensors: 16, PolePairs: 13},
		}
	}
	return c.Arrays
}

// GetFaultScenarios returns the failure counts to study.
func (c *AnalysisConfig) GetFaultScenarios() []FaultScenario {
	if len(c.FaultScenarios) == 0 {
		return []FaultScenario{
			{Name: "No Failures", Failures: 0},
			{Name: "One Failure", Failures: 1},
			{Name: "Two Failures", Failures: 2},
			{Name: "Three Failures", Failures: 3},
		}
	}
	return c.FaultScenarios
}

// GetMinSpareSensors returns how many working sensors beyond the failures a
// faulted scenario needs before it is run.
func (c *AnalysisConfig) GetMinSpareSensors() int {
	if c.MinSpareSensors == nil {
		return 3
	}
	return *c.MinSpareSensors
}

// GetResolutionClaimBits returns the resolution the healthy arrays must reach.
func (c *AnalysisConfig) GetResolutionClaimBits() float64 {
	if c.ResolutionClaimBits == nil {
		return 17
	}
	return *c.ResolutionClaimBits
}

// GetFaultToleranceMinBits returns the resolution a faulted array must keep.
func (c *AnalysisConfig) GetFaultToleranceMinBits() float64 {
	if c.FaultToleranceMinBits == nil {
		return 14
	}
	return *c.FaultToleranceMinBits
}

// GetBaseResolutionBits returns the single-sensor resolution used by the
// theoretical estimate.
func (c *AnalysisConfig) GetBaseResolutionBits() float64 {
	if c.BaseResolutionBits == nil {
		return 10
	}
	return *c.BaseResolutionBits
}

// ShouldRun reports whether scenario s is meaningful for array a: faulted
// scenarios are skipped when fewer than MinSpareSensors sensors would remain
// beyond the failures.
func (c *AnalysisConfig) ShouldRun(a ArraySpec, s FaultScenario) bool {
	if s.Failures == 0 {
		return true
	}
	return a.Sensors > s.Failures+c.GetMinSpareSensors()
}

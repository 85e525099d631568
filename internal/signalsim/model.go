// Package signalsim generates synthetic readings for a magnetic sensor array,
// following the model each sensor sees in front of a P-pole-pair ring magnet:
//
//	s_i(θ) = A1·sin(θ+φ_i) + AP·sin(P·θ + P·φ_i) + noise + drift
//
// optionally quantised by an ADC. It stands in for hardware when exercising
// the encoder package.
package signalsim

import (
	"fmt"
	"math"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
)

// Model holds the signal amplitudes and impairments.
type Model struct {
	// FundamentalAmplitude is A1, the weak once-per-revolution component.
	FundamentalAmplitude float64 `json:"fundamental_amplitude"`
	// HarmonicAmplitude is AP, the strong P-per-revolution component.
	HarmonicAmplitude float64 `json:"harmonic_amplitude"`
	// NoiseLevel is the Gaussian noise sigma relative to HarmonicAmplitude.
	NoiseLevel float64 `json:"noise_level"`
	// ADCBits quantises readings when positive.
	ADCBits int `json:"adc_bits"`
	// FullScale is the ADC input range, ±FullScale.
	FullScale float64 `json:"adc_full_scale"`
	// DriftAmplitude is the peak slowly varying per-sensor offset.
	DriftAmplitude float64 `json:"drift_amplitude"`
}

// DefaultModel returns the reference front end: A1=0.2, AP=1.0, 1% noise,
// no quantisation, ±1.5 full scale.
func DefaultModel() Model {
	return Model{
		FundamentalAmplitude: 0.2,
		HarmonicAmplitude:    1.0,
		NoiseLevel:           0.01,
		FullScale:            1.5,
	}
}

// Noiseless returns a copy of m with noise and drift disabled.
func (m Model) Noiseless() Model {
	m.NoiseLevel = 0
	m.DriftAmplitude = 0
	return m
}

// Validate checks the model is usable.
func (m Model) Validate() error {
	if m.HarmonicAmplitude <= 0 && m.FundamentalAmplitude <= 0 {
		return fmt.Errorf("at least one of fundamental or harmonic amplitude must be positive")
	}
	if m.NoiseLevel < 0 {
		return fmt.Errorf("noise_level must be non-negative, got %f", m.NoiseLevel)
	}
	if m.ADCBits < 0 || m.ADCBits > 32 {
		return fmt.Errorf("adc_bits must be between 0 and 32, got %d", m.ADCBits)
	}
	if m.ADCBits > 0 && m.FullScale <= 0 {
		return fmt.Errorf("adc_full_scale must be positive when adc_bits is set, got %f", m.FullScale)
	}
	return nil
}

// Ideal returns sensor i's noiseless, unquantised reading at thetaDeg.
func (m Model) Ideal(g encoder.Geometry, i int, thetaDeg float64) float64 {
	p := float64(g.PolePairs())
	phi := g.Position(i)
	fund := (thetaDeg + phi) * math.Pi / 180
	harm := encoder.Mod360(p*thetaDeg+p*phi) * math.Pi / 180
	return m.FundamentalAmplitude*math.Sin(fund) + m.HarmonicAmplitude*math.Sin(harm)
}

// Quantize rounds v to the nearest ADC code and clips it to ±FullScale.
// It returns v unchanged when quantisation is disabled.
func (m Model) Quantize(v float64) float64 {
	if m.ADCBits <= 0 || m.FullScale <= 0 {
		return v
	}
	step := 2 * m.FullScale / math.Exp2(float64(m.ADCBits))
	q := step * math.Round(v/step)
	return math.Max(-m.FullScale, math.Min(m.FullScale, q))
}

// LSBDeg is a rough angular size of one ADC code at the harmonic, useful for
// choosing test tolerances. It returns 0 without quantisation.
func (m Model) LSBDeg(polePairs int) float64 {
	if m.ADCBits <= 0 || m.HarmonicAmplitude <= 0 || polePairs < 1 {
		return 0
	}
	step := 2 * m.FullScale / math.Exp2(float64(m.ADCBits))
	return step / m.HarmonicAmplitude * 180 / math.Pi / float64(polePairs)
}

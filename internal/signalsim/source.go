package signalsim

import (
	"math/rand/v2"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
)

// driftScaleDeg is the rotation over which drift decorrelates.
const driftScaleDeg = 90.0

// Source produces readings from a Model with its own seeded random stream.
// A Source is not safe for concurrent use; give each goroutine its own.
type Source struct {
	model Model
	rng   *rand.Rand
	noise distuv.Normal
	drift opensimplex.Noise
}

// NewSource returns a Source whose noise and drift are fully determined by seed.
func NewSource(model Model, seed uint64) *Source {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Source{
		model: model,
		rng:   rng,
		noise: distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
		drift: opensimplex.New(int64(seed)),
	}
}

// Model returns the source's signal model.
func (s *Source) Model() Model { return s.model }

// Rand exposes the source's random stream so callers drawing failure masks or
// parameter variations stay on the same seed.
func (s *Source) Rand() *rand.Rand { return s.rng }

// Sample returns one reading per sensor at thetaDeg. Sensors in mask read 0,
// as an open sensor would; callers must still pass the mask to the encoder.
func (s *Source) Sample(g encoder.Geometry, thetaDeg float64, mask encoder.FailureMask) []float64 {
	m := s.model
	out := make([]float64, g.SensorCount())
	for i := range out {
		if mask.Contains(i) {
			continue
		}
		v := m.Ideal(g, i, thetaDeg)
		if m.NoiseLevel > 0 {
			v += m.NoiseLevel * m.HarmonicAmplitude * s.noise.Rand()
		}
		if m.DriftAmplitude > 0 {
			v += m.DriftAmplitude * s.drift.Eval2(thetaDeg/driftScaleDeg, float64(i))
		}
		out[i] = m.Quantize(v)
	}
	return out
}

// Tolerances are the relative spreads applied by Perturb.
type Tolerances struct {
	Fundamental float64 `json:"fundamental"`
	Harmonic    float64 `json:"harmonic"`
	Noise       float64 `json:"noise"`
}

// Perturb returns a copy of m with each amplitude and the noise level scaled
// by 1+u, u drawn uniformly from ±tolerance.
func Perturb(m Model, tol Tolerances, rng *rand.Rand) Model {
	vary := func(v, t float64) float64 {
		if t <= 0 {
			return v
		}
		u := distuv.Uniform{Min: -t, Max: t, Src: rng}
		return v * (1 + u.Rand())
	}
	m.FundamentalAmplitude = vary(m.FundamentalAmplitude, tol.Fundamental)
	m.HarmonicAmplitude = vary(m.HarmonicAmplitude, tol.Harmonic)
	m.NoiseLevel = vary(m.NoiseLevel, tol.Noise)
	return m
}

// RandomFailureMask marks k distinct sensors of n as failed.
func RandomFailureMask(n, k int, rng *rand.Rand) encoder.FailureMask {
	if k > n {
		k = n
	}
	var mask encoder.FailureMask
	if k <= 0 {
		return mask
	}
	for _, i := range rng.Perm(n)[:k] {
		mask.Add(i)
	}
	return mask
}

// TailFailureMask marks the k highest-indexed sensors of n as failed. It gives
// a deterministic degradation order for fault sweeps.
func TailFailureMask(n, k int) encoder.FailureMask {
	var mask encoder.FailureMask
	for i := n - 1; i >= 0 && i >= n-k; i-- {
		mask.Add(i)
	}
	return mask
}

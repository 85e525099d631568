package signalsim

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
)

func goldenGeometry(t *testing.T, n, p int) encoder.Geometry {
	t.Helper()
	g, err := encoder.NewGoldenGeometry(n, p)
	require.NoError(t, err)
	return g
}

func TestModel_Ideal(t *testing.T) {
	g := goldenGeometry(t, 8, 7)
	m := DefaultModel()

	for _, theta := range []float64{0, 12.5, 45, 180, 359.9} {
		for i := 0; i < g.SensorCount(); i++ {
			phi := g.Position(i)
			want := 0.2*math.Sin((theta+phi)*math.Pi/180) + 1.0*math.Sin(7*(theta+phi)*math.Pi/180)
			assert.InDelta(t, want, m.Ideal(g, i, theta), 1e-9, "theta=%v sensor=%d", theta, i)
		}
	}
}

func TestModel_Quantize(t *testing.T) {
	m := Model{ADCBits: 4, FullScale: 1.6}
	step := 0.2

	testCases := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"round_down", 0.29, 0.2},
		{"round_up", 0.31, 0.4},
		{"negative", -0.51, -0.6},
		{"clip_high", 5, 1.6},
		{"clip_low", -5, -1.6},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Quantize(tc.in)
			assert.InDelta(t, tc.want, got, 1e-12)
			assert.InDelta(t, 0, math.Remainder(got, step), 1e-12)
		})
	}

	assert.Equal(t, 0.123, Model{}.Quantize(0.123), "disabled ADC passes through")
}

func TestModel_Validate(t *testing.T) {
	require.NoError(t, DefaultModel().Validate())

	bad := []Model{
		{},
		{HarmonicAmplitude: 1, NoiseLevel: -0.1},
		{HarmonicAmplitude: 1, ADCBits: 40, FullScale: 1},
		{HarmonicAmplitude: 1, ADCBits: 12},
	}
	for _, m := range bad {
		assert.Error(t, m.Validate(), "%+v", m)
	}
}

func TestModel_LSBDeg(t *testing.T) {
	assert.Zero(t, DefaultModel().LSBDeg(7))

	m := DefaultModel()
	m.ADCBits = 12
	lsb := m.LSBDeg(7)
	assert.Greater(t, lsb, 0.0)
	assert.Less(t, m.LSBDeg(17), lsb)
}

func TestSource_Deterministic(t *testing.T) {
	g := goldenGeometry(t, 8, 7)
	m := DefaultModel()
	m.DriftAmplitude = 0.01

	a := NewSource(m, 42)
	b := NewSource(m, 42)
	c := NewSource(m, 43)
	for _, theta := range []float64{0, 10, 20} {
		sa := a.Sample(g, theta, encoder.FailureMask{})
		sb := b.Sample(g, theta, encoder.FailureMask{})
		sc := c.Sample(g, theta, encoder.FailureMask{})
		assert.Equal(t, sa, sb)
		assert.NotEqual(t, sa, sc)
	}
}

func TestSource_NoiselessMatchesIdeal(t *testing.T) {
	g := goldenGeometry(t, 12, 11)
	m := DefaultModel().Noiseless()
	src := NewSource(m, 1)

	got := src.Sample(g, 33.3, encoder.FailureMask{})
	require.Len(t, got, 12)
	for i, v := range got {
		assert.Equal(t, m.Ideal(g, i, 33.3), v)
	}
}

func TestSource_FailedSensorsReadZero(t *testing.T) {
	g := goldenGeometry(t, 8, 7)
	src := NewSource(DefaultModel(), 7)
	mask := encoder.NewFailureMask(0, 4)

	got := src.Sample(g, 100, mask)
	assert.Zero(t, got[0])
	assert.Zero(t, got[4])
	assert.NotZero(t, got[1])
}

func TestSource_NoiseSpread(t *testing.T) {
	g := goldenGeometry(t, 1, 1)
	m := Model{HarmonicAmplitude: 2, NoiseLevel: 0.05}
	src := NewSource(m, 99)

	const n = 4000
	var sum, sumSq float64
	for k := 0; k < n; k++ {
		v := src.Sample(g, 0, encoder.FailureMask{})[0] - m.Ideal(g, 0, 0)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	sd := math.Sqrt(sumSq/n - mean*mean)
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 0.1, sd, 0.01)
}

func TestPerturb(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	base := DefaultModel()
	tol := Tolerances{Fundamental: 0.1, Harmonic: 0.1, Noise: 0.2}

	for i := 0; i < 200; i++ {
		m := Perturb(base, tol, rng)
		assert.InDelta(t, base.FundamentalAmplitude, m.FundamentalAmplitude, 0.1*base.FundamentalAmplitude+1e-12)
		assert.InDelta(t, base.HarmonicAmplitude, m.HarmonicAmplitude, 0.1*base.HarmonicAmplitude+1e-12)
		assert.InDelta(t, base.NoiseLevel, m.NoiseLevel, 0.2*base.NoiseLevel+1e-12)
		assert.Equal(t, base.ADCBits, m.ADCBits)
	}

	assert.Equal(t, base, Perturb(base, Tolerances{}, rng))
}

func TestRandomFailureMask(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for k := 0; k <= 8; k++ {
		mask := RandomFailureMask(8, k, rng)
		assert.Equal(t, k, mask.Len())
		for _, i := range mask.Indices() {
			assert.True(t, i >= 0 && i < 8)
		}
	}
	assert.Equal(t, 8, RandomFailureMask(8, 20, rng).Len())
	assert.Zero(t, RandomFailureMask(8, -1, rng).Len())
}

func TestTailFailureMask(t *testing.T) {
	assert.Equal(t, []int{5, 6, 7}, TailFailureMask(8, 3).Indices())
	assert.Empty(t, TailFailureMask(8, 0).Indices())
	assert.Equal(t, []int{0, 1}, TailFailureMask(2, 5).Indices())
}

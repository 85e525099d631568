package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
)

func pointsWithErrors(errs ...float64) []Point {
	pts := make([]Point, len(errs))
	for i, e := range errs {
		pts[i] = Point{ErrorDeg: e, ResolutionBits: encoder.ResolutionBits(e)}
	}
	return pts
}

func TestSummarize(t *testing.T) {
	pts := pointsWithErrors(1, -1, 2, -2)
	pts = append(pts, Point{Degenerate: true, ErrorDeg: 100})

	s := Summarize(pts)
	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 0, s.MeanError, 1e-12)
	assert.InDelta(t, math.Sqrt(10.0/3), s.StdError, 1e-12)
	assert.InDelta(t, 1.5, s.MeanAbsError, 1e-12)
	assert.InDelta(t, math.Sqrt(10.0/4), s.RMSError, 1e-12)
	assert.Equal(t, 2.0, s.MaxAbsError)
	assert.InDelta(t, 2.0, s.P99AbsError, 1e-9)
	assert.InDelta(t, math.Log2(360)-0.5, s.MeanResolutionBits, 1e-12)
	assert.InDelta(t, math.Log2(180), s.ResolutionBitsMax, 1e-12)
	assert.InDelta(t, math.Log2(180), s.ResolutionBitsP99, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, Summarize(nil))
	assert.Equal(t, Stats{}, Summarize([]Point{{Degenerate: true}}))
}

func TestSummarize_SinglePoint(t *testing.T) {
	s := Summarize(pointsWithErrors(0.5))
	assert.Equal(t, 0.5, s.MeanError)
	assert.Equal(t, 0.0, s.StdError)
	assert.Equal(t, 0.5, s.P99AbsError)
}

func TestDescribe(t *testing.T) {
	xs := make([]float64, 100)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	rand.New(rand.NewPCG(1, 2)).Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
	first := xs[0]

	d := Describe(xs)
	assert.InDelta(t, 50.5, d.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(100*101/12.0), d.Std, 1e-9)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 100.0, d.Max)
	assert.InDelta(t, 1, d.P01, 1)
	assert.InDelta(t, 99, d.P99, 1)
	assert.LessOrEqual(t, d.P01, d.P99)
	assert.Equal(t, first, xs[0], "Describe must not reorder its input")

	assert.Equal(t, MetricStats{}, Describe(nil))
	assert.Equal(t, MetricStats{Mean: 3, Min: 3, Max: 3, P01: 3, P99: 3}, Describe([]float64{3}))
}

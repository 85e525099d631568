package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
)

// Stats summarises the error of one sweep. Error fields are in degrees.
type Stats struct {
	Samples            int     `json:"samples"`
	MeanError          float64 `json:"error_mean"`
	StdError           float64 `json:"error_std"`
	MeanAbsError       float64 `json:"error_mean_abs"`
	RMSError           float64 `json:"error_rms"`
	MaxAbsError        float64 `json:"error_max"`
	P99AbsError        float64 `json:"error_p99"`
	MeanResolutionBits float64 `json:"resolution_bits_mean"`
	ResolutionBitsMax  float64 `json:"resolution_bits_max"`
	ResolutionBitsP99  float64 `json:"resolution_bits_p99"`
}

// Summarize computes Stats over the points that produced an angle. Degenerate
// points are skipped. An empty input gives the zero Stats.
func Summarize(points []Point) Stats {
	errs := make([]float64, 0, len(points))
	bits := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Degenerate {
			continue
		}
		errs = append(errs, p.ErrorDeg)
		bits = append(bits, p.ResolutionBits)
	}
	if len(errs) == 0 {
		return Stats{}
	}

	abs := make([]float64, len(errs))
	for i, e := range errs {
		abs[i] = math.Abs(e)
	}
	sort.Float64s(abs)

	mean, std := meanStddev(errs)
	s := Stats{
		Samples:            len(errs),
		MeanError:          mean,
		StdError:           std,
		MeanAbsError:       stat.Mean(abs, nil),
		RMSError:           floats.Norm(errs, 2) / math.Sqrt(float64(len(errs))),
		MaxAbsError:        abs[len(abs)-1],
		P99AbsError:        percentile(abs, 0.99),
		MeanResolutionBits: stat.Mean(bits, nil),
	}
	s.ResolutionBitsMax = encoder.ResolutionBits(s.MaxAbsError)
	s.ResolutionBitsP99 = encoder.ResolutionBits(s.P99AbsError)
	return s
}

// MetricStats describes the spread of one metric across Monte Carlo runs.
type MetricStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P01  float64 `json:"p01"`
	P99  float64 `json:"p99"`
}

// Describe computes MetricStats for xs. xs is not modified.
func Describe(xs []float64) MetricStats {
	if len(xs) == 0 {
		return MetricStats{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mean, std := meanStddev(sorted)
	return MetricStats{
		Mean: mean,
		Std:  std,
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P01:  percentile(sorted, 0.01),
		P99:  percentile(sorted, 0.99),
	}
}

// meanStddev returns the mean and sample standard deviation, with a zero
// deviation for a single value.
func meanStddev(xs []float64) (float64, float64) {
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// percentile returns the linearly interpolated p-quantile of sorted data.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

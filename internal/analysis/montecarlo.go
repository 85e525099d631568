package analysis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/tmr-encoder/internal/config"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
)

// Metric names reported for every Monte Carlo run, in report order.
const (
	MetricErrorMean          = "error_mean"
	MetricErrorStd           = "error_std"
	MetricErrorMax           = "error_max"
	MetricErrorP99           = "error_p99"
	MetricResolutionBitsMean = "resolution_bits_mean"
	MetricResolutionBitsMax  = "resolution_bits_max"
	MetricResolutionBitsP99  = "resolution_bits_p99"
)

// Metrics lists the aggregated metrics in report order.
var Metrics = []string{
	MetricErrorMean,
	MetricErrorStd,
	MetricErrorMax,
	MetricErrorP99,
	MetricResolutionBitsMean,
	MetricResolutionBitsMax,
	MetricResolutionBitsP99,
}

// RunResult is one Monte Carlo run: a perturbed signal model, a random
// failure mask and the stats of a full-rotation sweep.
type RunResult struct {
	ID            string          `json:"id"`
	RunIndex      int             `json:"run_index"`
	ConfigName    string          `json:"config_name"`
	Sensors       int             `json:"num_sensors"`
	PolePairs     int             `json:"pole_pairs"`
	Failures      int             `json:"num_failures"`
	FailedSensors []int           `json:"failed_sensors"`
	Parameters    signalsim.Model `json:"parameters"`
	Degenerate    int             `json:"degenerate"`
	// Underdetermined is the number of sweep angles fitted at rank below 4.
	Underdetermined int   `json:"underdetermined"`
	Stats           Stats `json:"stats"`
}

// Metric returns the named metric of the run.
func (r RunResult) Metric(name string) (float64, error) {
	switch name {
	case MetricErrorMean:
		return r.Stats.MeanError, nil
	case MetricErrorStd:
		return r.Stats.StdError, nil
	case MetricErrorMax:
		return r.Stats.MaxAbsError, nil
	case MetricErrorP99:
		return r.Stats.P99AbsError, nil
	case MetricResolutionBitsMean:
		return r.Stats.MeanResolutionBits, nil
	case MetricResolutionBitsMax:
		return r.Stats.ResolutionBitsMax, nil
	case MetricResolutionBitsP99:
		return r.Stats.ResolutionBitsP99, nil
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// MonteCarlo runs repeated sweeps of one array under randomised conditions.
type MonteCarlo struct {
	Runs       int
	AngleSteps int
	Workers    int
	Seed       uint64
	Model      signalsim.Model
	Tolerances signalsim.Tolerances
}

// NewMonteCarlo takes its run control and nominal model from cfg.
func NewMonteCarlo(cfg *config.AnalysisConfig) *MonteCarlo {
	return &MonteCarlo{
		Runs:       cfg.GetRuns(),
		AngleSteps: cfg.GetAngleSteps(),
		Workers:    cfg.GetWorkers(),
		Seed:       cfg.GetSeed(),
		Model:      cfg.SignalModel(),
		Tolerances: cfg.GetTolerances(),
	}
}

func (mc *MonteCarlo) workers() int {
	if mc.Workers > 0 {
		return mc.Workers
	}
	return runtime.NumCPU()
}

// Run executes mc.Runs independent runs of array with failures random sensor
// failures each, in parallel. Results are ordered by run index and are fully
// determined by mc.Seed, whatever the worker count.
func (mc *MonteCarlo) Run(ctx context.Context, array config.ArraySpec, failures int) ([]RunResult, error) {
	g, err := array.Geometry()
	if err != nil {
		return nil, err
	}
	if mc.Runs < 1 {
		return nil, fmt.Errorf("runs must be positive, got %d", mc.Runs)
	}
	if failures < 0 || failures > g.SensorCount() {
		return nil, fmt.Errorf("cannot fail %d of %d sensors", failures, g.SensorCount())
	}
	spec := FullRotation(mc.AngleSteps)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	monitoring.Logf("[montecarlo] %s: %d runs, %d failures, %d workers", array.Label(), mc.Runs, failures, mc.workers())

	results := make([]RunResult, mc.Runs)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(mc.workers())
	for i := range results {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seed := mc.Seed + uint64(i)
			rng := rand.New(rand.NewPCG(seed, uint64(failures)))
			model := signalsim.Perturb(mc.Model, mc.Tolerances, rng)
			mask := signalsim.RandomFailureMask(g.SensorCount(), failures, rng)

			sweep, err := RunSweep(g, signalsim.NewSource(model, seed), spec, mask)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = RunResult{
				ID:            uuid.New().String(),
				RunIndex:      i,
				ConfigName:    array.Name,
				Sensors:       array.Sensors,
				PolePairs:     array.PolePairs,
				Failures:      failures,
				FailedSensors: sweep.FailedSensors,
				Parameters:    model,
				Degenerate:      sweep.Degenerate,
				Underdetermined: sweep.Underdetermined,
				Stats:           sweep.Stats,
			}
			monitoring.Debugf("[montecarlo] %s run %d: p99 %.3g°, %.2f bits", array.Label(), i, sweep.Stats.P99AbsError, sweep.Stats.ResolutionBitsP99)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	monitoring.Logf("[montecarlo] %s: %d failures done in %v", array.Label(), failures, time.Since(start).Round(time.Millisecond))
	return results, nil
}

// Aggregate computes MetricStats for every metric across runs.
func Aggregate(runs []RunResult) map[string]MetricStats {
	out := make(map[string]MetricStats, len(Metrics))
	for _, name := range Metrics {
		values := make([]float64, len(runs))
		for i, r := range runs {
			values[i], _ = r.Metric(name)
		}
		out[name] = Describe(values)
	}
	return out
}

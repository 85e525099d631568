package analysis

import (
	"errors"
	"fmt"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
)

// Point is the reconstruction of one true angle.
type Point struct {
	TrueDeg             float64 `json:"true_deg"`
	AngleDeg            float64 `json:"angle_deg"`
	ErrorDeg            float64 `json:"error_deg"`
	ResolutionBits      float64 `json:"resolution_bits"`
	Sector              int     `json:"sector"`
	FundamentalPhaseDeg float64 `json:"fundamental_phase_deg"`
	HarmonicPhaseDeg    float64 `json:"harmonic_phase_deg"`
	// Degenerate marks an angle whose readings carried no usable phase.
	Degenerate bool `json:"degenerate,omitempty"`
	// Underdetermined marks an angle reconstructed from a rank-deficient fit.
	Underdetermined bool `json:"underdetermined,omitempty"`
}

// SweepResult is one pass of a geometry through a SweepSpec.
type SweepResult struct {
	Geometry      string  `json:"geometry"`
	FailedSensors []int   `json:"failed_sensors"`
	Points        []Point `json:"points"`
	Degenerate    int     `json:"degenerate"`
	// Underdetermined counts points whose fit could not separate the two
	// phasors. They are kept in Stats so the error they carry shows up.
	Underdetermined int   `json:"underdetermined"`
	Stats           Stats `json:"stats"`
}

// RunSweep samples src at every angle of spec and reconstructs it with g.
// Degenerate readings are counted and skipped. Underdetermined fits are
// counted and kept. Any other reconstruction error,
// including too few working sensors, aborts the sweep.
func RunSweep(g encoder.Geometry, src *signalsim.Source, spec SweepSpec, mask encoder.FailureMask) (SweepResult, error) {
	if err := spec.Validate(); err != nil {
		return SweepResult{}, err
	}

	out := SweepResult{
		Geometry:      g.String(),
		FailedSensors: mask.Indices(),
		Points:        make([]Point, 0, spec.Steps),
	}
	for _, theta := range spec.Angles() {
		res, err := encoder.Reconstruct(src.Sample(g, theta, mask), g, mask)
		if errors.Is(err, encoder.ErrDegenerateSignal) {
			out.Degenerate++
			out.Points = append(out.Points, Point{TrueDeg: theta, Degenerate: true})
			monitoring.Debugf("sweep %s: degenerate readings at %.4f°", g, theta)
			continue
		}
		if err != nil {
			return SweepResult{}, fmt.Errorf("reconstruct %s at %.4f°: %w", g, theta, err)
		}

		if res.Underdetermined {
			out.Underdetermined++
		}
		e := encoder.AngleErrorDeg(theta, res.AngleDeg)
		out.Points = append(out.Points, Point{
			TrueDeg:             theta,
			AngleDeg:            res.AngleDeg,
			ErrorDeg:            e,
			ResolutionBits:      encoder.ResolutionBits(e),
			Sector:              res.Sector,
			FundamentalPhaseDeg: res.FundamentalPhaseDeg,
			HarmonicPhaseDeg:    res.HarmonicPhaseDeg,
			Underdetermined:     res.Underdetermined,
		})
	}
	if out.Underdetermined > 0 {
		monitoring.Logf("sweep %s: %d of %d angles from an underdetermined fit (%d working sensors)",
			g, out.Underdetermined, spec.Steps, g.SensorCount()-mask.Len())
	}
	if out.Degenerate > 0 {
		monitoring.Logf("sweep %s: %d of %d angles degenerate", g, out.Degenerate, spec.Steps)
	}
	out.Stats = Summarize(out.Points)
	return out, nil
}

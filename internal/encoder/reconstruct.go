package encoder

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// rankTolerance is the singular value cut-off, relative to the largest,
	// below which a direction of the sensor Gram matrix is treated as unobservable.
	rankTolerance = 1e-9

	// degenerateTolerance is the phasor amplitude, relative to the largest
	// working reading, below which a phase is considered undefined.
	degenerateTolerance = 1e-12
)

// Phasor is a fitted sinusoidal component: Sin and Cos are the amplitudes of
// the sin(kθ) and cos(kθ) terms, so the component's phase is atan2(Sin, Cos).
type Phasor struct {
	Sin float64
	Cos float64
}

// Amplitude returns the magnitude of the component.
func (p Phasor) Amplitude() float64 { return math.Hypot(p.Sin, p.Cos) }

// PhaseDeg returns the component's phase in [0, 360).
func (p Phasor) PhaseDeg() float64 {
	return Mod360(math.Atan2(p.Sin, p.Cos) * 180 / math.Pi)
}

// Result is the outcome of one reconstruction.
type Result struct {
	// AngleDeg is the unwrapped absolute mechanical angle in [0, 360).
	AngleDeg float64
	// Sector is the coarse position, 0..P-1, each sector 360/P wide.
	Sector int
	// FundamentalPhaseDeg is the phase of the once-per-revolution component.
	FundamentalPhaseDeg float64
	// HarmonicPhaseDeg is the phase of the Pth harmonic, equal to P·θ mod 360.
	HarmonicPhaseDeg float64
	// FineOffsetDeg is the position inside the sector, HarmonicPhaseDeg/P.
	FineOffsetDeg float64
	// WorkingSensors is the number of sensors that contributed.
	WorkingSensors int
	// FitRank is the rank of the working sensors' Gram matrix, at most 4.
	FitRank int
	// Underdetermined is set when FitRank < 4. The two phasors cannot be
	// separated and the angle is a minimum-norm guess that may be off by
	// tens of degrees.
	Underdetermined bool

	Fundamental Phasor
	Harmonic    Phasor
}

// Reconstruct recovers the absolute angle from one set of readings.
//
// samples must be aligned with g's sensor positions; entries for indices in
// mask are ignored. At least MinWorkingSensors must remain.
//
// The readings of the working sensors are projected onto the fundamental and
// harmonic basis (cos φ, sin φ, cos Pφ, sin Pφ), each sum normalised by the
// working count. Golden-angle positions are not an orthogonal sampling grid,
// so the strong harmonic leaks into the weak fundamental projection; the
// projections are de-mixed with the normalised Gram matrix of the working
// sensors. With four or more well-spread working sensors this is an exact
// least-squares fit. With two or three working sensors, or positions that
// alias the two harmonics, the Gram matrix has rank below four: the
// minimum-norm fit is returned with Underdetermined set, and its angle can
// be wrong by more than 150° in a noiseless sweep. Callers that need a
// trustworthy angle must reject such results.
func Reconstruct(samples []float64, g Geometry, mask FailureMask) (Result, error) {
	if err := g.validate(); err != nil {
		return Result{}, err
	}
	n := g.SensorCount()
	if len(samples) != n {
		return Result{}, fmt.Errorf("%w: got %d readings for %s", ErrSampleLength, len(samples), g)
	}
	for _, i := range mask.Indices() {
		if i < 0 || i >= n {
			return Result{}, fmt.Errorf("%w: sensor %d not in 0..%d", ErrMaskIndex, i, n-1)
		}
	}

	working := n - mask.Len()
	if working < MinWorkingSensors {
		return Result{}, fmt.Errorf("%w: %d of %d sensors working, need %d", ErrInsufficientSensors, working, n, MinWorkingSensors)
	}

	var (
		proj  [4]float64
		gram  [16]float64
		scale float64
	)
	for i, s := range samples {
		if mask.Contains(i) {
			continue
		}
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Result{}, fmt.Errorf("%w: sensor %d reads %v", ErrInvalidSample, i, s)
		}
		scale = math.Max(scale, math.Abs(s))
		b := g.basis[i]
		for r := 0; r < 4; r++ {
			proj[r] += b[r] * s
			for c := 0; c < 4; c++ {
				gram[r*4+c] += b[r] * b[c]
			}
		}
	}
	if scale == 0 {
		return Result{}, fmt.Errorf("%w: all %d working readings are zero", ErrDegenerateSignal, working)
	}
	m := float64(working)
	for i := range proj {
		proj[i] /= m
	}
	for i := range gram {
		gram[i] /= m
	}

	coef, rank, err := demix(gram, proj)
	if err != nil {
		return Result{}, err
	}

	// The signal model is A1·sin(θ+φ) + AP·sin(Pθ+Pφ), so the cos φ term
	// carries A1·sin θ and the sin φ term carries A1·cos θ.
	fund := Phasor{Sin: coef[0], Cos: coef[1]}
	harm := Phasor{Sin: coef[2], Cos: coef[3]}
	if fund.Amplitude() <= degenerateTolerance*scale {
		return Result{}, fmt.Errorf("%w: fundamental amplitude %.3g", ErrDegenerateSignal, fund.Amplitude())
	}
	if harm.Amplitude() <= degenerateTolerance*scale {
		return Result{}, fmt.Errorf("%w: harmonic amplitude %.3g", ErrDegenerateSignal, harm.Amplitude())
	}

	res := Result{
		FundamentalPhaseDeg: fund.PhaseDeg(),
		HarmonicPhaseDeg:    harm.PhaseDeg(),
		WorkingSensors:      working,
		FitRank:             rank,
		Underdetermined:     rank < 4,
		Fundamental:         fund,
		Harmonic:            harm,
	}
	res.Sector, res.FineOffsetDeg, res.AngleDeg = unwrap(res.FundamentalPhaseDeg, res.HarmonicPhaseDeg, g.polePairs)
	return res, nil
}

// demix solves gram·x = proj with an SVD pseudo-inverse and returns the
// solution with the rank it was computed at. A Gram matrix of rank below two
// cannot separate even one phasor.
func demix(gram [16]float64, proj [4]float64) ([4]float64, int, error) {
	var out [4]float64

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(4, 4, gram[:]), mat.SVDFull); !ok {
		return out, 0, fmt.Errorf("%w: sensor basis factorisation failed", ErrDegenerateSignal)
	}
	rank := svd.Rank(rankTolerance)
	if rank < 2 {
		return out, rank, fmt.Errorf("%w: working sensors span rank %d", ErrDegenerateSignal, rank)
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, mat.NewVecDense(4, proj[:]), rank)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, rank, nil
}

// unwrap combines the coarse fundamental phase with the fine harmonic phase.
// The sector comes from the fundamental; if the harmonic places the angle
// more than half a sector away from the fundamental, the sector is stepped
// towards it so that noise near a sector edge cannot cause a 360/P slip.
func unwrap(fundDeg, harmDeg float64, polePairs int) (sector int, fineDeg, angleDeg float64) {
	p := float64(polePairs)
	width := 360 / p

	sector = int(math.Floor(fundDeg / width))
	if sector >= polePairs {
		sector = polePairs - 1
	}
	fineDeg = harmDeg / p

	switch d := float64(sector)*width + fineDeg - fundDeg; {
	case d > width/2:
		sector--
	case d < -width/2:
		sector++
	}
	sector = ((sector % polePairs) + polePairs) % polePairs

	angleDeg = Mod360(float64(sector)*width + fineDeg)
	return sector, fineDeg, angleDeg
}

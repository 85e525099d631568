// Package encoder reconstructs an absolute mechanical angle from an array of
// magnetic sensors observing a multi-pole ring magnet.
//
// Each sensor sees a weak fundamental (one period per revolution) and a strong
// Pth harmonic (P periods per revolution, one per pole pair). The fundamental
// is unambiguous but coarse; the harmonic is fine but repeats every 360/P
// degrees. Reconstruct fits both components across the array, uses the
// fundamental to pick the sector and the harmonic to place the angle inside it.
//
// All functions in this package are pure. A Geometry is immutable after
// construction and may be shared between goroutines.
package encoder

import (
	"fmt"
	"math"
)

// Phi is the golden ratio.
const Phi = 1.6180339887498948482

// GoldenAngleDeg is the golden angle, 360·(2−φ) ≈ 137.5077°. Placing sensor i
// at i·GoldenAngleDeg keeps any two sensors from sharing a harmonic phase for
// small arrays.
const GoldenAngleDeg = 360 * (2 - Phi)

// MinWorkingSensors is the smallest working set Reconstruct accepts.
const MinWorkingSensors = 2

// Geometry describes a sensor array: N sensors at fixed angular positions
// around a ring magnet with P pole pairs.
type Geometry struct {
	polePairs int
	positions []float64

	// basis holds cos φ, sin φ, cos Pφ, sin Pφ for each sensor.
	basis [][4]float64
}

// NewGoldenGeometry places n sensors at golden-angle spacing,
// position(i) = i·GoldenAngleDeg mod 360.
func NewGoldenGeometry(n, polePairs int) (Geometry, error) {
	if n < 1 {
		return Geometry{}, fmt.Errorf("%w: sensor count %d, need at least 1", ErrInvalidGeometry, n)
	}
	positions := make([]float64, n)
	for i := range positions {
		positions[i] = Mod360(float64(i) * GoldenAngleDeg)
	}
	return NewGeometry(polePairs, positions)
}

// NewGeometry builds a geometry from explicit sensor positions in degrees.
// Positions are normalised into [0, 360). The slice is copied.
func NewGeometry(polePairs int, positions []float64) (Geometry, error) {
	if len(positions) < 1 {
		return Geometry{}, fmt.Errorf("%w: no sensor positions", ErrInvalidGeometry)
	}
	if polePairs < 1 {
		return Geometry{}, fmt.Errorf("%w: pole pairs %d, need at least 1", ErrInvalidGeometry, polePairs)
	}

	g := Geometry{
		polePairs: polePairs,
		positions: make([]float64, len(positions)),
		basis:     make([][4]float64, len(positions)),
	}
	for i, p := range positions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Geometry{}, fmt.Errorf("%w: sensor %d position %v", ErrInvalidGeometry, i, p)
		}
		deg := Mod360(p)
		g.positions[i] = deg

		fund := deg * math.Pi / 180
		harm := Mod360(float64(polePairs)*deg) * math.Pi / 180
		g.basis[i] = [4]float64{math.Cos(fund), math.Sin(fund), math.Cos(harm), math.Sin(harm)}
	}
	return g, nil
}

// SensorCount returns N.
func (g Geometry) SensorCount() int { return len(g.positions) }

// PolePairs returns P.
func (g Geometry) PolePairs() int { return g.polePairs }

// Positions returns a copy of the sensor positions in degrees.
func (g Geometry) Positions() []float64 {
	out := make([]float64, len(g.positions))
	copy(out, g.positions)
	return out
}

// Position returns sensor i's position in degrees. Like a slice index, it
// panics if i is outside 0..SensorCount()-1.
func (g Geometry) Position(i int) float64 { return g.positions[i] }

// SectorWidthDeg returns 360/P, the span over which the harmonic repeats.
func (g Geometry) SectorWidthDeg() float64 {
	if g.polePairs < 1 {
		return 0
	}
	return 360 / float64(g.polePairs)
}

// Optimal reports whether the array uses the recommended P = N−1 pairing.
// Other pairings are valid; this is advisory only.
func (g Geometry) Optimal() bool {
	return g.polePairs == len(g.positions)-1
}

func (g Geometry) validate() error {
	if len(g.positions) < 1 || g.polePairs < 1 || len(g.basis) != len(g.positions) {
		return fmt.Errorf("%w: use NewGeometry or NewGoldenGeometry", ErrInvalidGeometry)
	}
	return nil
}

// String describes the array, e.g. "N=8 P=7".
func (g Geometry) String() string {
	return fmt.Sprintf("N=%d P=%d", len(g.positions), g.polePairs)
}

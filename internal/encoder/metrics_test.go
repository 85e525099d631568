package encoder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMod360(t *testing.T) {
	testCases := []struct {
		in, want float64
	}{
		{0, 0},
		{359.999, 359.999},
		{360, 0},
		{720.5, 0.5},
		{-0.5, 359.5},
		{-360, 0},
		{-1e-15, 0},
		{-725, 355},
	}
	for _, tc := range testCases {
		got := Mod360(tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, "Mod360(%v)", tc.in)
		assert.True(t, got >= 0 && got < 360, "Mod360(%v) = %v out of range", tc.in, got)
	}
}

func TestAngleErrorDeg(t *testing.T) {
	testCases := []struct {
		name         string
		truth, angle float64
		want         float64
	}{
		{"exact", 45, 45, 0},
		{"small_positive", 45.001, 45, 0.001},
		{"small_negative", 45, 45.001, -0.001},
		{"wrap_forward", 0.001, 359.999, 0.002},
		{"wrap_backward", 359.999, 0.001, -0.002},
		{"half_turn", 180, 0, -180},
		{"quarter", 90, 0, 90},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := AngleErrorDeg(tc.truth, tc.angle)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.True(t, got >= -180 && got < 180)
		})
	}
}

func TestResolutionBits(t *testing.T) {
	assert.InDelta(t, 0, ResolutionBits(360), 1e-12)
	assert.InDelta(t, 1, ResolutionBits(-180), 1e-12)
	assert.InDelta(t, math.Log2(360/0.002), ResolutionBits(0.002), 1e-12)

	zero := ResolutionBits(0)
	assert.False(t, math.IsInf(zero, 0) || math.IsNaN(zero))
	assert.InDelta(t, math.Log2(360/ResolutionFloorDeg), zero, 1e-9)
}

func TestTheoreticalResolutionBits(t *testing.T) {
	// 10 + log2(√8) + log2(7)
	assert.InDelta(t, 10+1.5+math.Log2(7), TheoreticalResolutionBits(10, 8, 7), 1e-12)
	// P above N−1 is capped at N−1.
	assert.InDelta(t, 10+2+math.Log2(15), TheoreticalResolutionBits(10, 16, 17), 1e-12)
	// A single sensor gains nothing from the harmonic.
	assert.InDelta(t, 10, TheoreticalResolutionBits(10, 1, 1), 1e-12)
	assert.Equal(t, 12.0, TheoreticalResolutionBits(12, 0, 3))

	assert.Less(t, TheoreticalResolutionBits(10, 8, 7), TheoreticalResolutionBits(10, 16, 17))
	assert.Less(t, TheoreticalResolutionBits(10, 16, 17), TheoreticalResolutionBits(10, 32, 31))
}

package encoder

import "math"

// ResolutionFloorDeg bounds ResolutionBits when the error is exactly zero.
const ResolutionFloorDeg = 1e-10

// Mod360 maps an angle in degrees into [0, 360). Every phase in this package
// is normalised through it so wrap boundaries behave the same everywhere.
func Mod360(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	// r+360 rounds to 360 for tiny negative r.
	if r >= 360 {
		r -= 360
	}
	return r
}

// AngleErrorDeg returns the signed shortest-path difference trueDeg − measuredDeg
// in [−180, 180).
func AngleErrorDeg(trueDeg, measuredDeg float64) float64 {
	return Mod360(trueDeg-measuredDeg+180) - 180
}

// ResolutionBits expresses an angular error as bits of resolution over a full
// turn, log2(360/|err|).
func ResolutionBits(errDeg float64) float64 {
	return math.Log2(360 / math.Max(math.Abs(errDeg), ResolutionFloorDeg))
}

// TheoreticalResolutionBits is the expected resolution of an N-sensor,
// P-pole-pair array built on a front end with baseBits of single-sensor
// resolution: base + log2(√N) + log2(min(P, N−1)).
func TheoreticalResolutionBits(baseBits float64, sensors, polePairs int) float64 {
	if sensors < 1 || polePairs < 1 {
		return baseBits
	}
	gain := math.Min(float64(polePairs), float64(sensors-1))
	bits := baseBits + math.Log2(math.Sqrt(float64(sensors)))
	if gain >= 1 {
		bits += math.Log2(gain)
	}
	return bits
}

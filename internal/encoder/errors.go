package encoder

import "errors"

var (
	// ErrInsufficientSensors is returned when fewer than MinWorkingSensors
	// sensors remain after applying the failure mask.
	ErrInsufficientSensors = errors.New("insufficient working sensors")

	// ErrDegenerateSignal is returned when the fitted fundamental or harmonic
	// phasor is numerically zero, so its phase is undefined.
	ErrDegenerateSignal = errors.New("degenerate signal")

	// ErrInvalidGeometry is returned for sensor arrays that violate N >= 1,
	// P >= 1 or contain non-finite positions.
	ErrInvalidGeometry = errors.New("invalid sensor array geometry")

	// ErrSampleLength is returned when the sample vector is not aligned with
	// the geometry's sensor positions.
	ErrSampleLength = errors.New("sample length does not match sensor count")

	// ErrMaskIndex is returned when a failure mask names a sensor outside the array.
	ErrMaskIndex = errors.New("failure mask index out of range")

	// ErrInvalidSample is returned when a working sensor reports NaN or Inf.
	ErrInvalidSample = errors.New("non-finite sensor reading")
)

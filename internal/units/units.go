// Package units provides the angle display units accepted by the tools.
package units

import (
	"math"
	"strings"
)

// Unit constants
const (
	Degrees      = "deg"
	Millidegrees = "mdeg"
	Arcseconds   = "arcsec"
	Radians      = "rad"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Degrees, Millidegrees, Arcseconds, Radians}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated list of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertAngle converts an angle in degrees to the target unit. Unknown units
// leave the value in degrees.
func ConvertAngle(deg float64, targetUnit string) float64 {
	switch targetUnit {
	case Millidegrees:
		return deg * 1e3
	case Arcseconds:
		return deg * 3600
	case Radians:
		return deg * math.Pi / 180
	default:
		return deg
	}
}

// Symbol returns the short suffix used when printing a value in unit.
func Symbol(unit string) string {
	switch unit {
	case Millidegrees:
		return "m°"
	case Arcseconds:
		return "″"
	case Radians:
		return " rad"
	default:
		return "°"
	}
}

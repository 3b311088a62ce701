// Package units provides shared constants and conversion helpers for angle
// and speed units used at the presentation edge. The core pipeline is
// unit-canonical: angles in radians, speeds in m/s.
package units

import "math"

// Angle unit constants
const (
	Radians = "rad"
	Degrees = "deg"
)

// Speed unit constants
const (
	MPS  = "mps"
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
)

// ValidAngleUnits contains all valid angle unit values
var ValidAngleUnits = []string{Radians, Degrees}

// IsValidAngleUnit checks if the given unit is in the list of valid angle units
func IsValidAngleUnit(unit string) bool {
	for _, validUnit := range ValidAngleUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidAngleUnitsString returns a comma-separated string of valid angle
// units for error messages
func GetValidAngleUnitsString() string {
	return "rad, deg"
}

// ConvertAngle converts an angle from radians to the target units.
// The pipeline stores angles in radians.
func ConvertAngle(rad float64, targetUnits string) float64 {
	switch targetUnits {
	case Degrees:
		return rad * 180.0 / math.Pi
	case Radians:
		return rad
	default:
		return rad // default to radians if unknown unit
	}
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694 // m/s to mph
	case KMPH, KPH:
		return speedMPS * 3.6 // m/s to km/h
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}

// KnotsToMetersPerSecond converts a speed-over-ground in knots (as reported
// by NMEA RMC sentences) to m/s.
func KnotsToMetersPerSecond(knots float64) float64 {
	return knots * 0.514444
}

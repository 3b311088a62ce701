// Package orientation converts rotation-vector readings into roll/pitch/yaw
// estimates.
package orientation

import (
	"fmt"
	"math"
)

// NormTolerance is the maximum deviation from unit norm accepted without
// renormalising. Sensor-fusion hardware drifts, so out-of-tolerance
// quaternions are normalised rather than rejected.
const NormTolerance = 1e-3

// Quaternion is a unit (or near-unit) rotation quaternion.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// FromValues builds a quaternion from rotation-vector values in wire order
// (x, y, z, w). Phones may omit w, in which case it is reconstructed as
// sqrt(max(0, 1 - x² - y² - z²)), which is non-negative by construction.
func FromValues(values []float64) (Quaternion, error) {
	if len(values) < 3 {
		return Quaternion{}, fmt.Errorf("rotation vector needs at least 3 values, got %d", len(values))
	}

	q := Quaternion{X: values[0], Y: values[1], Z: values[2]}
	if len(values) >= 4 {
		q.W = values[3]
	} else {
		q.W = math.Sqrt(math.Max(0, 1-q.X*q.X-q.Y*q.Y-q.Z*q.Z))
	}
	return q, nil
}

// Norm returns the quaternion's Euclidean norm.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalized returns q scaled to unit norm. A zero quaternion normalises to
// the identity rather than producing NaNs.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 {
		return Identity()
	}
	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Euler converts the quaternion to roll, pitch, yaw in radians using the
// standard aerospace (ZYX) formulas. The asin argument is clamped to
// [-1, 1] because floating-point drift can push it just outside the domain.
// Quaternions whose norm deviates from 1 by more than NormTolerance are
// normalised first.
func (q Quaternion) Euler() (roll, pitch, yaw float64) {
	if math.Abs(q.Norm()-1) > NormTolerance {
		q = q.Normalized()
	}

	sinr := 2 * (q.W*q.X + q.Y*q.Z)
	cosr := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll = math.Atan2(sinr, cosr)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	sinp = math.Max(-1, math.Min(1, sinp))
	pitch = math.Asin(sinp)

	siny := 2 * (q.W*q.Z + q.X*q.Y)
	cosy := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw = math.Atan2(siny, cosy)

	return roll, pitch, yaw
}

package orientation

import (
	"fmt"
	"time"

	"github.com/oakfield-data/motion.report/internal/telemetry"
)

// State is the derived orientation estimate: the source quaternion plus its
// Euler decomposition. It is recomputed on every rotation-vector reading and
// never persisted independently of its source.
type State struct {
	Quaternion Quaternion `json:"quaternion"`
	Roll       float64    `json:"roll"`  // radians
	Pitch      float64    `json:"pitch"` // radians
	Yaw        float64    `json:"yaw"`   // radians
	Time       time.Time  `json:"time"`
}

// FromReading derives an orientation state from a rotation-vector reading.
func FromReading(r telemetry.Reading) (State, error) {
	if !r.Type.IsRotationVector() {
		return State{}, fmt.Errorf("reading type %s is not a rotation vector", r.Type)
	}

	q, err := FromValues(r.Values)
	if err != nil {
		return State{}, fmt.Errorf("reading %s: %w", r.Type, err)
	}

	roll, pitch, yaw := q.Euler()
	return State{
		Quaternion: q,
		Roll:       roll,
		Pitch:      pitch,
		Yaw:        yaw,
		Time:       r.Time,
	}, nil
}

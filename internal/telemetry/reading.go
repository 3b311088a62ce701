// Package telemetry defines the sensor data model and the datagram decoder
// for the phone telemetry stream.
package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// SensorType identifies a sensor stream. Known values follow the Android
// sensor-type integers used on the wire; GPS and battery are host-side
// synthetic tags because the transmitter labels those records by name only.
// Unrecognised integers are carried through as-is so new phone sensors keep
// flowing without a decoder update.
type SensorType int

const (
	TypeAccelerometer             SensorType = 1
	TypeMagnetometer              SensorType = 2
	TypeGyroscope                 SensorType = 4
	TypeLight                     SensorType = 5
	TypePressure                  SensorType = 6
	TypeGravity                   SensorType = 9
	TypeLinearAcceleration        SensorType = 10
	TypeRotationVector            SensorType = 11
	TypeGameRotationVector        SensorType = 15
	TypeStepCounter               SensorType = 19
	TypeGeomagneticRotationVector SensorType = 20

	// Synthetic tags for records the transmitter identifies by name.
	TypeGPS     SensorType = 1000
	TypeBattery SensorType = 1001
)

var sensorTypeNames = map[SensorType]string{
	TypeAccelerometer:             "accelerometer",
	TypeMagnetometer:              "magnetometer",
	TypeGyroscope:                 "gyroscope",
	TypeLight:                     "light",
	TypePressure:                  "pressure",
	TypeGravity:                   "gravity",
	TypeLinearAcceleration:        "linear_acceleration",
	TypeRotationVector:            "rotation_vector",
	TypeGameRotationVector:        "game_rotation_vector",
	TypeStepCounter:               "step_counter",
	TypeGeomagneticRotationVector: "geomagnetic_rotation_vector",
	TypeGPS:                       "gps",
	TypeBattery:                   "battery",
}

func (t SensorType) String() string {
	if name, ok := sensorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Known reports whether t is a sensor type this build understands. Unknown
// types are still decoded and stored; Known only gates type-specific views
// like GpsFix.
func (t SensorType) Known() bool {
	_, ok := sensorTypeNames[t]
	return ok
}

// IsRotationVector reports whether readings of this type carry an
// orientation quaternion. Android exposes three rotation-vector flavours.
func (t SensorType) IsRotationVector() bool {
	return t == TypeRotationVector || t == TypeGameRotationVector || t == TypeGeomagneticRotationVector
}

// ParseSensorType resolves a sensor name (as produced by String) back to its
// tag. Used by the API and CLI tools to accept human-readable sensor names.
func ParseSensorType(s string) (SensorType, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for t, name := range sensorTypeNames {
		if name == needle {
			return t, nil
		}
	}
	var raw int
	if _, err := fmt.Sscanf(needle, "unknown(%d)", &raw); err == nil {
		return SensorType(raw), nil
	}
	if _, err := fmt.Sscanf(needle, "%d", &raw); err == nil {
		return SensorType(raw), nil
	}
	return 0, fmt.Errorf("unknown sensor type %q", s)
}

// Reading is one decoded sensor sample. A Reading is never mutated after the
// decoder constructs it; the store hands out the same value to all readers.
type Reading struct {
	Type       SensorType `json:"type"`
	Name       string     `json:"name"`
	Time       time.Time  `json:"time"`           // host receive time
	DeviceTime int64      `json:"device_time_ns"` // transmitter timestamp, nanoseconds
	Accuracy   float64    `json:"accuracy"`
	Values     []float64  `json:"values"`
}

func (r Reading) String() string {
	vals := make([]string, len(r.Values))
	for i, v := range r.Values {
		vals[i] = fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%s [%s]", r.Type, strings.Join(vals, ", "))
}

// GpsFix is the GPS-specific view over a reading's values:
// [lat, lon, alt, speed, accuracy], trailing fields optional.
type GpsFix struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  float64 `json:"alt"`
	Speed     float64 `json:"speed_mps"`
	Accuracy  float64 `json:"accuracy_m"`
}

// Fix interprets a GPS reading. It returns false if the reading is not a GPS
// reading or carries fewer than two values.
func (r Reading) Fix() (GpsFix, bool) {
	if r.Type != TypeGPS || len(r.Values) < 2 {
		return GpsFix{}, false
	}
	fix := GpsFix{Latitude: r.Values[0], Longitude: r.Values[1]}
	if len(r.Values) > 2 {
		fix.Altitude = r.Values[2]
	}
	if len(r.Values) > 3 {
		fix.Speed = r.Values[3]
	}
	if len(r.Values) > 4 {
		fix.Accuracy = r.Values[4]
	}
	return fix, true
}

// BatteryState is the battery-specific view over a reading's values:
// [volts, amps, watts, charging], trailing fields optional.
type BatteryState struct {
	Volts    float64 `json:"volts"`
	Amps     float64 `json:"amps"`
	Watts    float64 `json:"watts"`
	Charging bool    `json:"charging"`
}

// Battery interprets a battery reading. It returns false if the reading is
// not a battery reading or carries no values.
func (r Reading) Battery() (BatteryState, bool) {
	if r.Type != TypeBattery || len(r.Values) == 0 {
		return BatteryState{}, false
	}
	b := BatteryState{Volts: r.Values[0]}
	if len(r.Values) > 1 {
		b.Amps = r.Values[1]
	}
	if len(r.Values) > 2 {
		b.Watts = r.Values[2]
	}
	if len(r.Values) > 3 {
		b.Charging = r.Values[3] != 0
	}
	return b, true
}

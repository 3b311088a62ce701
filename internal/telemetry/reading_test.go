package telemetry

import "testing"

func TestSensorTypeString(t *testing.T) {
	tests := []struct {
		t    SensorType
		want string
	}{
		{TypeAccelerometer, "accelerometer"},
		{TypeRotationVector, "rotation_vector"},
		{TypeGPS, "gps"},
		{TypeBattery, "battery"},
		{SensorType(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("SensorType(%d).String() = %q, want %q", int(tt.t), got, tt.want)
		}
	}
}

func TestParseSensorType(t *testing.T) {
	tests := []struct {
		in      string
		want    SensorType
		wantErr bool
	}{
		{"gyroscope", TypeGyroscope, false},
		{"GPS", TypeGPS, false},
		{" rotation_vector ", TypeRotationVector, false},
		{"unknown(42)", SensorType(42), false},
		{"19", TypeStepCounter, false},
		{"warp drive", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSensorType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSensorType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseSensorType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsRotationVector(t *testing.T) {
	for _, rt := range []SensorType{TypeRotationVector, TypeGameRotationVector, TypeGeomagneticRotationVector} {
		if !rt.IsRotationVector() {
			t.Errorf("%v should be a rotation vector", rt)
		}
	}
	if TypeAccelerometer.IsRotationVector() {
		t.Error("accelerometer should not be a rotation vector")
	}
}

func TestFixRejectsNonGps(t *testing.T) {
	r := Reading{Type: TypeAccelerometer, Values: []float64{1, 2, 3}}
	if _, ok := r.Fix(); ok {
		t.Error("Fix() should reject non-GPS readings")
	}

	short := Reading{Type: TypeGPS, Values: []float64{51.5}}
	if _, ok := short.Fix(); ok {
		t.Error("Fix() should reject a single-value GPS reading")
	}
}

func TestBatteryView(t *testing.T) {
	r := Reading{Type: TypeBattery, Values: []float64{3.9, 0.2}}
	b, ok := r.Battery()
	if !ok {
		t.Fatal("Battery() returned false")
	}
	if b.Volts != 3.9 || b.Amps != 0.2 || b.Watts != 0 || b.Charging {
		t.Errorf("battery = %+v", b)
	}

	if _, ok := (Reading{Type: TypeBattery}).Battery(); ok {
		t.Error("Battery() should reject an empty values slice")
	}
}

package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var decodeTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeDatagramSingleRecord(t *testing.T) {
	data := []byte(`{"type":1,"name":"lsm6dso accelerometer","vendor":"STMicro","version":1,"ts_ns":123456789,"acc":3,"values":[0.1,-0.2,9.81]}`)

	readings, err := DecodeDatagram(data, decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}

	want := []Reading{{
		Type:       TypeAccelerometer,
		Name:       "lsm6dso accelerometer",
		Time:       decodeTime,
		DeviceTime: 123456789,
		Accuracy:   3,
		Values:     []float64{0.1, -0.2, 9.81},
	}}
	if diff := cmp.Diff(want, readings); diff != "" {
		t.Errorf("readings mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDatagramMultipleLines(t *testing.T) {
	data := []byte(strings.Join([]string{
		`{"type":1,"name":"accel","ts_ns":1,"values":[1,2,3]}`,
		``,
		`{"type":4,"name":"gyro","ts_ns":2,"values":[0.01,0.02,0.03]}`,
		`{"type":11,"name":"rotation","ts_ns":3,"values":[0,0,0.7071,0.7071]}`,
	}, "\n"))

	readings, err := DecodeDatagram(data, decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("got %d readings, want 3", len(readings))
	}
	if readings[0].Type != TypeAccelerometer || readings[1].Type != TypeGyroscope || readings[2].Type != TypeRotationVector {
		t.Errorf("unexpected types: %v %v %v", readings[0].Type, readings[1].Type, readings[2].Type)
	}
}

func TestDecodeDatagramKeepsValidLinesOnFailure(t *testing.T) {
	data := []byte(strings.Join([]string{
		`{"type":1,"name":"accel","ts_ns":1,"values":[1,2,3]}`,
		`{"type":4,"name":"gyro","ts_ns":2,"values":`,
		`{"type":5,"name":"light","ts_ns":3,"values":[120]}`,
	}, "\n"))

	readings, err := DecodeDatagram(data, decodeTime)
	if err == nil {
		t.Fatal("expected a decode error for the truncated line")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error is %T, want *DecodeError", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want the 2 valid lines", len(readings))
	}
	if readings[0].Type != TypeAccelerometer || readings[1].Type != TypeLight {
		t.Errorf("unexpected types: %v %v", readings[0].Type, readings[1].Type)
	}
}

func TestDecodeDatagramReportsFirstError(t *testing.T) {
	data := []byte("not json at all\n???\n")

	readings, err := DecodeDatagram(data, decodeTime)
	if len(readings) != 0 {
		t.Errorf("got %d readings, want 0", len(readings))
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error is %T, want *DecodeError", err)
	}
	if string(decErr.Raw) != "not json at all" {
		t.Errorf("error raw = %q, want the first bad line", decErr.Raw)
	}
}

func TestDecodeDatagramStringEncodedValues(t *testing.T) {
	// Some transmitter versions double-encode the values array.
	data := []byte(`{"type":6,"name":"pressure","ts_ns":9,"values":"[1013.25]"}`)

	readings, err := DecodeDatagram(data, decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}
	if len(readings) != 1 || len(readings[0].Values) != 1 || readings[0].Values[0] != 1013.25 {
		t.Fatalf("got %+v, want single pressure value 1013.25", readings)
	}
}

func TestDecodeDatagramNumericStringsAndBools(t *testing.T) {
	data := []byte(`{"name":"battery monitor","ts_ns":1,"values":["4.12","0.35","1.44",true]}`)

	readings, err := DecodeDatagram(data, decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	want := []float64{4.12, 0.35, 1.44, 1}
	if diff := cmp.Diff(want, readings[0].Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	b, ok := readings[0].Battery()
	if !ok {
		t.Fatal("Battery() returned false")
	}
	if b.Volts != 4.12 || !b.Charging {
		t.Errorf("battery = %+v, want 4.12V charging", b)
	}
}

func TestDecodeDatagramGpsByName(t *testing.T) {
	// GPS records carry no Android type integer.
	data := []byte(`{"name":"GPS provider","ts_ns":7,"acc":"?","values":[51.5007,-0.1246,35.0,1.2,4.5]}`)

	readings, err := DecodeDatagram(data, decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	r := readings[0]
	if r.Type != TypeGPS {
		t.Fatalf("type = %v, want gps", r.Type)
	}
	if r.Accuracy != 0 {
		t.Errorf("accuracy = %v, want 0 for unparseable %q", r.Accuracy, "?")
	}

	fix, ok := r.Fix()
	if !ok {
		t.Fatal("Fix() returned false")
	}
	if fix.Latitude != 51.5007 || fix.Longitude != -0.1246 || fix.Altitude != 35.0 || fix.Speed != 1.2 || fix.Accuracy != 4.5 {
		t.Errorf("fix = %+v", fix)
	}
}

func TestDecodeDatagramUnknownTypePassesThrough(t *testing.T) {
	data := []byte(`{"type":65560,"name":"vendor wake gesture","ts_ns":1,"values":[1]}`)

	readings, err := DecodeDatagram(data, decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	if readings[0].Type.Known() {
		t.Error("type 65560 should not be Known")
	}
	if got := readings[0].Type.String(); got != "unknown(65560)" {
		t.Errorf("String() = %q, want unknown(65560)", got)
	}
}

func TestDecodeDatagramMissingTypeAndName(t *testing.T) {
	data := []byte(`{"name":"mystery","ts_ns":1,"values":[1]}`)

	if _, err := DecodeDatagram(data, decodeTime); err == nil {
		t.Fatal("expected error for record with neither type nor recognisable name")
	}
}

func TestDecodeDatagramEmpty(t *testing.T) {
	readings, err := DecodeDatagram([]byte("\n\n  \n"), decodeTime)
	if err != nil {
		t.Fatalf("DecodeDatagram returned error: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("got %d readings, want 0", len(readings))
	}
}

package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oakfield-data/motion.report/internal/store"
	"github.com/oakfield-data/motion.report/internal/telemetry"
	"github.com/oakfield-data/motion.report/internal/testutil"
	"github.com/oakfield-data/motion.report/internal/units"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.New(10)
	t.Cleanup(st.Close)
	return NewServer(st, nil, nil, units.Degrees, 3*time.Second), st
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestListSensors(t *testing.T) {
	srv, st := newTestServer(t)

	st.Update(telemetry.Reading{Type: telemetry.TypeAccelerometer, Name: "lsm6dso", Time: time.Now(), Values: []float64{0, 0, 9.8}})
	st.Update(telemetry.Reading{Type: telemetry.TypeGyroscope, Name: "lsm6dso gyro", Time: time.Now(), Values: []float64{0, 0, 0}})

	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/sensors"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var infos []sensorInfo
	decodeBody(t, rec, &infos)
	if len(infos) != 2 {
		t.Fatalf("got %d sensors, want 2", len(infos))
	}
	// Sorted by type integer: accelerometer (1) before gyroscope (4).
	if infos[0].Sensor != "accelerometer" || infos[1].Sensor != "gyroscope" {
		t.Errorf("sensors = %v", infos)
	}
	if infos[0].Name != "lsm6dso" {
		t.Errorf("name = %q, want lsm6dso", infos[0].Name)
	}
	if infos[0].Stale {
		t.Error("fresh sensor reported stale")
	}
}

func TestShowLatest(t *testing.T) {
	srv, st := newTestServer(t)
	st.Update(telemetry.Reading{Type: telemetry.TypeLight, Name: "light", Time: time.Now(), Values: []float64{120}})

	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/latest?sensor=light"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var r telemetry.Reading
	decodeBody(t, rec, &r)
	if r.Type != telemetry.TypeLight || r.Values[0] != 120 {
		t.Errorf("reading = %+v", r)
	}
}

func TestShowLatestErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"missing sensor param", http.MethodGet, "/api/latest", http.StatusBadRequest},
		{"unknown sensor name", http.MethodGet, "/api/latest?sensor=hyperdrive", http.StatusBadRequest},
		{"no data yet", http.MethodGet, "/api/latest?sensor=gps", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/latest?sensor=gps", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewTestRecorder()
			mux.ServeHTTP(rec, testutil.NewTestRequest(tt.method, tt.path))
			testutil.AssertStatusCode(t, rec.Code, tt.want)
		})
	}
}

func TestShowOrientationConvertsUnits(t *testing.T) {
	srv, st := newTestServer(t)

	// 90 degree yaw
	st.Update(telemetry.Reading{
		Type:   telemetry.TypeRotationVector,
		Time:   time.Now(),
		Values: []float64{0, 0, 0.70710678, 0.70710678},
	})

	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/orientation"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body struct {
		Yaw   float64 `json:"yaw"`
		Roll  float64 `json:"roll"`
		Units string  `json:"units"`
	}
	decodeBody(t, rec, &body)
	if body.Units != "deg" {
		t.Errorf("units = %q, want deg", body.Units)
	}
	if body.Yaw < 89.9 || body.Yaw > 90.1 {
		t.Errorf("yaw = %v, want ~90 degrees", body.Yaw)
	}
}

func TestShowOrientationBeforeAnyRotation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/orientation"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestShowGps(t *testing.T) {
	srv, st := newTestServer(t)
	st.Update(telemetry.Reading{
		Type:   telemetry.TypeGPS,
		Time:   time.Now(),
		Values: []float64{51.5007, -0.1246, 35, 1.2, 4.5},
	})

	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/gps"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body struct {
		Fix telemetry.GpsFix `json:"fix"`
	}
	decodeBody(t, rec, &body)
	if body.Fix.Latitude != 51.5007 || body.Fix.Speed != 1.2 {
		t.Errorf("fix = %+v", body.Fix)
	}
}

func TestShowStatsWithoutListener(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/stats"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestListSessionsWithoutDB(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/sessions"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestShowConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/config"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if body["angle_units"] != "deg" || body["stale_after"] != "3s" {
		t.Errorf("config = %v", body)
	}
}

func TestNewServerFallsBackToRadians(t *testing.T) {
	st := store.New(10)
	defer st.Close()
	srv := NewServer(st, nil, nil, "furlongs", 0)
	if srv.angleUnits != units.Radians {
		t.Errorf("angleUnits = %q, want rad fallback", srv.angleUnits)
	}
	if srv.staleAfter != DefaultStaleAfter {
		t.Errorf("staleAfter = %v, want default", srv.staleAfter)
	}
}

func TestStreamEvents(t *testing.T) {
	srv, st := newTestServer(t)
	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events")
	testutil.AssertNoError(t, err)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// Initial ping comment.
	line, err := reader.ReadString('\n')
	testutil.AssertNoError(t, err)
	if !strings.HasPrefix(line, ": ping") {
		t.Fatalf("first line = %q, want ping comment", line)
	}
	reader.ReadString('\n') // blank separator

	// Wait for the subscription to register before publishing.
	time.Sleep(50 * time.Millisecond)
	st.Update(telemetry.Reading{Type: telemetry.TypeLight, Time: time.Now(), Values: []float64{7}})

	deadline := time.AfterFunc(2*time.Second, func() { resp.Body.Close() })
	defer deadline.Stop()

	for {
		line, err = reader.ReadString('\n')
		testutil.AssertNoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}

	var r telemetry.Reading
	testutil.AssertNoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &r))
	if r.Type != telemetry.TypeLight || r.Values[0] != 7 {
		t.Errorf("streamed reading = %+v", r)
	}
}

// Package api exposes the consumer HTTP surface that presentation adapters
// (text dashboards, 3D views, map views) read from.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/oakfield-data/motion.report/internal/db"
	"github.com/oakfield-data/motion.report/internal/httputil"
	"github.com/oakfield-data/motion.report/internal/ingest"
	"github.com/oakfield-data/motion.report/internal/monitoring"
	"github.com/oakfield-data/motion.report/internal/store"
	"github.com/oakfield-data/motion.report/internal/telemetry"
	"github.com/oakfield-data/motion.report/internal/units"
	"github.com/oakfield-data/motion.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultStaleAfter is the window after which a silent sensor is reported as
// stale when no explicit window is configured.
const DefaultStaleAfter = 3 * time.Second

type Server struct {
	store      *store.Store
	db         *db.DB
	listener   *ingest.UDPListener
	angleUnits string
	staleAfter time.Duration
}

// NewServer creates a Server. db and listener may be nil when recording or
// live ingest state is not available (tests, replay tooling).
func NewServer(st *store.Store, database *db.DB, listener *ingest.UDPListener, angleUnits string, staleAfter time.Duration) *Server {
	if !units.IsValidAngleUnit(angleUnits) {
		angleUnits = units.Radians
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Server{
		store:      st,
		db:         database,
		listener:   listener,
		angleUnits: angleUnits,
		staleAfter: staleAfter,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sensors", s.listSensors)
	mux.HandleFunc("/api/latest", s.showLatest)
	mux.HandleFunc("/api/history", s.showHistory)
	mux.HandleFunc("/api/orientation", s.showOrientation)
	mux.HandleFunc("/api/gps", s.showGps)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/events", s.streamEvents)
	mux.HandleFunc("/ws", s.streamWebsocket)
	return mux
}

// sensorParam resolves the required ?sensor= query parameter.
func sensorParam(r *http.Request) (telemetry.SensorType, error) {
	name := r.URL.Query().Get("sensor")
	if name == "" {
		return 0, fmt.Errorf("missing 'sensor' parameter")
	}
	return telemetry.ParseSensorType(name)
}

type sensorInfo struct {
	Sensor     string    `json:"sensor"`
	Name       string    `json:"name,omitempty"`
	LastUpdate time.Time `json:"last_update"`
	Stale      bool      `json:"stale"`
}

func (s *Server) listSensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	types := s.store.Sensors()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	infos := make([]sensorInfo, 0, len(types))
	for _, t := range types {
		info := sensorInfo{
			Sensor:     t.String(),
			LastUpdate: s.store.LastUpdate(t),
			Stale:      s.store.Stale(t, s.staleAfter),
		}
		if latest, ok := s.store.Latest(t); ok {
			info.Name = latest.Name
		}
		infos = append(infos, info)
	}

	httputil.WriteJSONOK(w, infos)
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sensorType, err := sensorParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	reading, ok := s.store.Latest(sensorType)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no readings for sensor %s", sensorType))
		return
	}

	httputil.WriteJSONOK(w, reading)
}

func (s *Server) showOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	state, ok := s.store.Orientation()
	if !ok {
		httputil.NotFound(w, "no rotation-vector readings received yet")
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"quaternion": state.Quaternion,
		"roll":       units.ConvertAngle(state.Roll, s.angleUnits),
		"pitch":      units.ConvertAngle(state.Pitch, s.angleUnits),
		"yaw":        units.ConvertAngle(state.Yaw, s.angleUnits),
		"units":      s.angleUnits,
		"time":       state.Time,
	})
}

func (s *Server) showGps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	reading, ok := s.store.Latest(telemetry.TypeGPS)
	if !ok {
		httputil.NotFound(w, "no GPS readings received yet")
		return
	}

	fix, ok := reading.Fix()
	if !ok {
		httputil.InternalServerError(w, "latest GPS reading is not interpretable as a fix")
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"fix":  fix,
		"time": reading.Time,
	})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.listener == nil {
		httputil.NotFound(w, "no live ingest running")
		return
	}

	packets, bytes, readings, decodeFailures, dropped := s.listener.Stats().Snapshot()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"packets":         packets,
		"bytes":           bytes,
		"readings":        readings,
		"decode_failures": decodeFailures,
		"dropped_forward": dropped,
		"last_packet":     s.listener.LastPacket(),
		"stale":           s.listener.Stale(s.staleAfter),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "recording is disabled")
		return
	}

	sessions, err := s.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	config := map[string]interface{}{
		"angle_units": s.angleUnits,
		"stale_after": s.staleAfter.String(),
		"version":     version.Version,
		"git_sha":     version.GitSHA,
	}
	httputil.WriteJSONOK(w, config)
}

// streamEvents issues Server-Sent Events for every reading written to the
// store, so poll-driven dashboards can refresh on new data without polling.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	id, c := s.store.Subscribe()
	defer s.store.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case reading, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(reading)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

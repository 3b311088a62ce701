package api

import (
	"fmt"
	"net/http"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/oakfield-data/motion.report/internal/httputil"
	"github.com/oakfield-data/motion.report/internal/telemetry"
)

// axisSummary carries descriptive statistics for one value axis of a
// sensor's history, for plot scaling and quick-look displays.
type axisSummary struct {
	Axis   int     `json:"axis"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type historyResponse struct {
	Sensor   string              `json:"sensor"`
	Count    int                 `json:"count"`
	Readings []telemetry.Reading `json:"readings"`
	Summary  []axisSummary       `json:"summary,omitempty"`
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sensorType, err := sensorParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	readings := s.store.History(sensorType)
	if readings == nil {
		httputil.NotFound(w, fmt.Sprintf("no readings for sensor %s", sensorType))
		return
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		if limit < len(readings) {
			readings = readings[len(readings)-limit:] // keep the most recent
		}
	}

	httputil.WriteJSONOK(w, historyResponse{
		Sensor:   sensorType.String(),
		Count:    len(readings),
		Readings: readings,
		Summary:  summarise(readings),
	})
}

// summarise computes per-axis descriptive statistics over a history
// snapshot. Readings with fewer values than the widest reading contribute
// only to the axes they carry.
func summarise(readings []telemetry.Reading) []axisSummary {
	width := 0
	for _, r := range readings {
		if len(r.Values) > width {
			width = len(r.Values)
		}
	}
	if width == 0 {
		return nil
	}

	summaries := make([]axisSummary, 0, width)
	for axis := 0; axis < width; axis++ {
		var samples []float64
		for _, r := range readings {
			if axis < len(r.Values) {
				samples = append(samples, r.Values[axis])
			}
		}
		if len(samples) == 0 {
			continue
		}
		// StdDev of a single sample is NaN, which JSON cannot encode.
		stddev := 0.0
		if len(samples) > 1 {
			stddev = stat.StdDev(samples, nil)
		}
		summaries = append(summaries, axisSummary{
			Axis:   axis,
			Mean:   stat.Mean(samples, nil),
			StdDev: stddev,
			Min:    floats.Min(samples),
			Max:    floats.Max(samples),
		})
	}
	return summaries
}

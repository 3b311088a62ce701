package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DecodeError reports a datagram line that could not be decoded. It carries
// the raw bytes for diagnostics; the ingestion loop logs and drops these
// without stopping.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrorf(raw []byte, format string, v ...interface{}) error {
	return &DecodeError{Raw: append([]byte(nil), raw...), Err: fmt.Errorf(format, v...)}
}

// wireRecord mirrors one JSON line as sent by the phone transmitter.
// The acc and values fields use RawMessage because some transmitter
// versions string-encode them.
type wireRecord struct {
	Type    *int            `json:"type"`
	Name    string          `json:"name"`
	Vendor  string          `json:"vendor"`
	Version int             `json:"version"`
	TsNs    int64           `json:"ts_ns"`
	Acc     json.RawMessage `json:"acc"`
	Values  json.RawMessage `json:"values"`
}

// DecodeDatagram decodes one UDP datagram into readings. A datagram carries
// one or more newline-separated JSON records; lines starting with '$' are
// NMEA sentences. Blank lines are skipped. Valid lines are always returned,
// even when a later line is malformed; the first failure is returned as a
// *DecodeError alongside them.
func DecodeDatagram(data []byte, now time.Time) ([]Reading, error) {
	var readings []Reading
	var firstErr error

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var (
			r   Reading
			ok  bool
			err error
		)
		switch {
		case strings.HasPrefix(line, "$"):
			r, ok, err = decodeNMEALine(line, now)
			if err == nil && !ok {
				continue // valid sentence type we don't consume
			}
		case strings.HasPrefix(line, "{"):
			r, err = decodeJSONLine([]byte(line), now)
		default:
			err = decodeErrorf([]byte(line), "unrecognised record format")
		}

		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		readings = append(readings, r)
	}

	return readings, firstErr
}

func decodeJSONLine(line []byte, now time.Time) (Reading, error) {
	var rec wireRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Reading{}, decodeErrorf(line, "invalid JSON: %v", err)
	}

	sensorType, err := classifyRecord(&rec, line)
	if err != nil {
		return Reading{}, err
	}

	values, err := decodeValues(rec.Values, line)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Type:       sensorType,
		Name:       rec.Name,
		Time:       now,
		DeviceTime: rec.TsNs,
		Accuracy:   decodeAccuracy(rec.Acc),
		Values:     values,
	}, nil
}

// classifyRecord maps a wire record to a sensor type. GPS and battery
// records carry no Android type integer and are matched on the record name,
// mirroring the transmitter's behaviour.
func classifyRecord(rec *wireRecord, line []byte) (SensorType, error) {
	lowerName := strings.ToLower(rec.Name)
	switch {
	case strings.Contains(lowerName, "gps"):
		return TypeGPS, nil
	case strings.Contains(lowerName, "battery"):
		return TypeBattery, nil
	case rec.Type != nil:
		return SensorType(*rec.Type), nil
	}
	return 0, decodeErrorf(line, "record has neither a type tag nor a recognisable name")
}

// decodeValues handles the two value encodings seen in the wild: a JSON
// array of numbers, or a string containing a JSON array. Elements may be
// numbers or numeric strings.
func decodeValues(raw json.RawMessage, line []byte) ([]float64, error) {
	if len(raw) == 0 {
		return nil, decodeErrorf(line, "missing values field")
	}

	// String-encoded list: unwrap once and retry.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = json.RawMessage(inner)
	}

	var elems []interface{}
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, decodeErrorf(line, "values is not a list: %v", err)
	}

	values := make([]float64, 0, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case float64:
			values = append(values, v)
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, decodeErrorf(line, "failed to parse value %d: %v", i, err)
			}
			values = append(values, f)
		case bool:
			// charging flags arrive as booleans from some app versions
			if v {
				values = append(values, 1)
			} else {
				values = append(values, 0)
			}
		default:
			return nil, decodeErrorf(line, "value %d has non-numeric type %T", i, e)
		}
	}
	return values, nil
}

// decodeAccuracy parses the accuracy field best-effort. The transmitter
// sends "?" when the value is unavailable, so failures map to zero rather
// than a decode error.
func decodeAccuracy(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

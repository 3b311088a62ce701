// Package store holds the process-wide sensor state: the latest reading and
// a bounded history per sensor type, plus the derived orientation estimate.
// It is written by the ingestion loop and read concurrently by presentation
// consumers; a single mutex guarantees readers never observe a torn reading.
package store

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/oakfield-data/motion.report/internal/monitoring"
	"github.com/oakfield-data/motion.report/internal/orientation"
	"github.com/oakfield-data/motion.report/internal/telemetry"
	"github.com/oakfield-data/motion.report/internal/timeutil"
)

// DefaultHistoryCapacity bounds the per-sensor history ring when no explicit
// capacity is configured. Sized for plotting a few seconds of a typical
// phone sensor rate.
const DefaultHistoryCapacity = 200

type sensorState struct {
	latest  telemetry.Reading
	history *ring
}

// Store is the sensor state store. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	sensors  map[telemetry.SensorType]*sensorState
	orient   *orientation.State
	capacity int
	clock    timeutil.Clock

	subscribers  map[string]chan telemetry.Reading
	subscriberMu sync.Mutex
}

// New creates a Store with the given per-sensor history capacity. A
// capacity below 1 falls back to DefaultHistoryCapacity.
func New(capacity int) *Store {
	return NewWithClock(capacity, timeutil.RealClock{})
}

// NewWithClock creates a Store with an injectable clock for staleness tests.
func NewWithClock(capacity int, clock timeutil.Clock) *Store {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &Store{
		sensors:     make(map[telemetry.SensorType]*sensorState),
		capacity:    capacity,
		clock:       clock,
		subscribers: make(map[string]chan telemetry.Reading),
	}
}

// Update records a reading as the latest entry for its sensor type, appends
// it to the type's history ring (evicting the oldest entry on overflow), and
// recomputes the orientation estimate for rotation-vector readings. The
// reading is then broadcast to subscribers without blocking.
func (s *Store) Update(r telemetry.Reading) {
	s.mu.Lock()
	state, ok := s.sensors[r.Type]
	if !ok {
		state = &sensorState{history: newRing(s.capacity)}
		s.sensors[r.Type] = state
	}
	state.latest = r
	state.history.push(r)

	if r.Type.IsRotationVector() {
		if o, err := orientation.FromReading(r); err != nil {
			monitoring.Logf("failed to derive orientation from %s reading: %v", r.Type, err)
		} else {
			s.orient = &o
		}
	}
	s.mu.Unlock()

	s.broadcast(r)
}

// Latest returns the most recent reading for a sensor type, or false if no
// reading of that type has arrived yet.
func (s *Store) Latest(t telemetry.SensorType) (telemetry.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sensors[t]
	if !ok {
		return telemetry.Reading{}, false
	}
	return state.latest, true
}

// History returns a snapshot of the history ring for a sensor type, oldest
// first. The returned slice is a copy and is never mutated afterwards.
func (s *Store) History(t telemetry.SensorType) []telemetry.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sensors[t]
	if !ok {
		return nil
	}
	return state.history.snapshot()
}

// Orientation returns the current orientation estimate, or false if no
// rotation-vector reading has arrived yet.
func (s *Store) Orientation() (orientation.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orient == nil {
		return orientation.State{}, false
	}
	return *s.orient, true
}

// Sensors returns the set of sensor types seen so far.
func (s *Store) Sensors() []telemetry.SensorType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]telemetry.SensorType, 0, len(s.sensors))
	for t := range s.sensors {
		types = append(types, t)
	}
	return types
}

// LastUpdate returns the receive time of the most recent reading for a
// sensor type, or the zero time if none has arrived.
func (s *Store) LastUpdate(t telemetry.SensorType) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sensors[t]
	if !ok {
		return time.Time{}
	}
	return state.latest.Time
}

// Stale reports whether a sensor has not produced a reading within the
// given window. It also reports true for sensors never seen. Staleness is a
// queryable condition for consumers to display, not an error.
func (s *Store) Stale(t telemetry.SensorType, window time.Duration) bool {
	last := s.LastUpdate(t)
	if last.IsZero() {
		return true
	}
	return s.clock.Since(last) > window
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a buffered channel receiving every reading written to
// the store. The returned ID identifies the channel when unsubscribing.
func (s *Store) Subscribe() (string, chan telemetry.Reading) {
	id := randomID()
	ch := make(chan telemetry.Reading, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// broadcast delivers a reading to all subscribers without blocking. A slow
// consumer drops readings; it must never stall the ingestion loop.
func (s *Store) broadcast(r telemetry.Reading) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- r:
		default:
		}
	}
}

// Close closes all subscriber channels.
func (s *Store) Close() {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

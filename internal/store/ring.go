package store

import "github.com/oakfield-data/motion.report/internal/telemetry"

// ring is a fixed-capacity history buffer that evicts the oldest reading to
// admit a new one once full. Not safe for concurrent use; the Store's mutex
// guards it.
type ring struct {
	buf   []telemetry.Reading
	head  int // index of the next write
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]telemetry.Reading, capacity)}
}

func (r *ring) push(reading telemetry.Reading) {
	r.buf[r.head] = reading
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) len() int { return r.count }

// snapshot returns the ring contents oldest first as a fresh slice.
func (r *ring) snapshot() []telemetry.Reading {
	out := make([]telemetry.Reading, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

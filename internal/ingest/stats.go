// Package ingest owns the UDP receive loop: it binds the listen socket,
// drives the datagram decoder, writes readings into the sensor store, and
// optionally records them and forwards raw datagrams.
package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/oakfield-data/motion.report/internal/monitoring"
)

// PacketStats tracks ingest statistics with thread-safe operations.
type PacketStats struct {
	mu             sync.Mutex
	packetCount    int64
	byteCount      int64
	readingCount   int64
	decodeFailures int64
	droppedCount   int64
	lastReset      time.Time
}

// NewPacketStats creates a new PacketStats instance.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket increments packet count and byte count.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddReadings increments the decoded reading count.
func (ps *PacketStats) AddReadings(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.readingCount += int64(count)
}

// AddDecodeFailure increments the decode failure count.
func (ps *PacketStats) AddDecodeFailure() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.decodeFailures++
}

// AddDropped increments the dropped forward count.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// Snapshot returns the counters accumulated since the last reset without
// resetting them. Used by the stats API endpoint.
func (ps *PacketStats) Snapshot() (packets, bytes, readings, decodeFailures, dropped int64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.packetCount, ps.byteCount, ps.readingCount, ps.decodeFailures, ps.droppedCount
}

// GetAndReset returns current stats and resets counters.
func (ps *PacketStats) GetAndReset() (packets, bytes, readings, decodeFailures, dropped int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets = ps.packetCount
	bytes = ps.byteCount
	readings = ps.readingCount
	decodeFailures = ps.decodeFailures
	dropped = ps.droppedCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.readingCount = 0
	ps.decodeFailures = 0
	ps.droppedCount = 0
	ps.lastReset = now

	return
}

// LogStats logs a one-line rate summary and resets the counters.
func (ps *PacketStats) LogStats() {
	packets, bytes, readings, decodeFailures, dropped, duration := ps.GetAndReset()
	if packets == 0 && decodeFailures == 0 {
		return
	}

	packetsPerSec := float64(packets) / duration.Seconds()
	kbPerSec := float64(bytes) / duration.Seconds() / 1024
	readingsPerSec := float64(readings) / duration.Seconds()

	logMsg := fmt.Sprintf("Ingest stats (/sec): %.1f KB, %.1f packets, %.1f readings",
		kbPerSec, packetsPerSec, readingsPerSec)
	if decodeFailures > 0 {
		logMsg += fmt.Sprintf(", %d decode failures", decodeFailures)
	}
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d dropped on forward", dropped)
	}
	monitoring.Logf("%s", logMsg)
}

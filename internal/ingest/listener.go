package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oakfield-data/motion.report/internal/monitoring"
	"github.com/oakfield-data/motion.report/internal/store"
	"github.com/oakfield-data/motion.report/internal/telemetry"
)

// Recorder persists readings. Implemented by the db package; nil disables
// recording.
type Recorder interface {
	RecordReading(sessionID string, r telemetry.Reading) error
}

// UDPListener receives telemetry datagrams and feeds the sensor store. It
// is the single reader of the socket; readings are processed in arrival
// order and per-datagram decode failures never escape the loop.
type UDPListener struct {
	address     string
	rcvBuf      int
	readTimeout time.Duration
	logInterval time.Duration
	conn        *net.UDPConn
	stats       *PacketStats
	forwarder   *PacketForwarder
	store       *store.Store
	recorder    Recorder
	sessionID   string

	mu         sync.Mutex
	lastPacket time.Time
}

// Config contains configuration options for the UDP listener.
type Config struct {
	Address     string        // listen address, e.g. ":5005"
	RcvBuf      int           // socket receive buffer, 0 for the OS default
	ReadTimeout time.Duration // receive deadline per iteration, bounds stop latency
	LogInterval time.Duration // interval between stats log lines
	Stats       *PacketStats
	Forwarder   *PacketForwarder
	Store       *store.Store
	Recorder    Recorder
	SessionID   string
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config Config) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = NewPacketStats()
	}

	readTimeout := config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 500 * time.Millisecond
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		readTimeout: readTimeout,
		logInterval: logInterval,
		stats:       stats,
		forwarder:   config.Forwarder,
		store:       config.Store,
		recorder:    config.Recorder,
		sessionID:   config.SessionID,
	}
}

// Stats returns the listener's packet statistics.
func (l *UDPListener) Stats() *PacketStats { return l.stats }

// LastPacket returns the receive time of the most recent datagram, or the
// zero time if none has arrived.
func (l *UDPListener) LastPacket() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastPacket
}

// Stale reports whether no datagram arrived within the given window. "No
// data received" is a valid steady state, not a fault; consumers use this
// to show a disconnected indicator.
func (l *UDPListener) Stale(window time.Duration) bool {
	last := l.LastPacket()
	if last.IsZero() {
		return true
	}
	return time.Since(last) > window
}

// Start binds the listen socket and runs the receive loop until the context
// is cancelled. A bind failure is fatal and returned immediately; it is
// never retried silently. Receive timeouts only bound the stop-signal check
// and are not errors.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address %s: %w", l.address, err)
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	monitoring.Logf("UDP listener started on %s", l.address)

	if l.forwarder != nil {
		l.forwarder.Start(ctx)
	}

	go l.startStatsLogging(ctx)

	// Phone datagrams are short JSON lines; 64KB covers any UDP payload.
	buffer := make([]byte, 65535)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
			conn.SetReadDeadline(time.Now().Add(l.readTimeout))

			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue // quiet link; loop around to check the stop signal
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("UDP read error: %v", err)
				continue
			}

			packet := buffer[:n]
			if err := l.handlePacket(packet); err != nil {
				monitoring.Logf("Error handling datagram from %v: %v", addr, err)
			}
		}
	}
}

// startStatsLogging periodically logs packet statistics. An initial report
// fires shortly after startup to avoid a long silence on first run.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// handlePacket processes a single received datagram. Decode failures are
// counted and logged; valid readings in the same datagram are still stored.
func (l *UDPListener) handlePacket(packet []byte) error {
	now := time.Now()

	l.mu.Lock()
	l.lastPacket = now
	l.mu.Unlock()

	l.stats.AddPacket(len(packet))

	if l.forwarder != nil {
		l.forwarder.ForwardAsync(packet)
	}

	readings, err := telemetry.DecodeDatagram(packet, now)
	if err != nil {
		l.stats.AddDecodeFailure()
		var decodeErr *telemetry.DecodeError
		if errors.As(err, &decodeErr) {
			monitoring.Logf("dropping undecodable line: %v", decodeErr)
		} else {
			monitoring.Logf("decode error: %v", err)
		}
	}

	l.stats.AddReadings(len(readings))

	for _, r := range readings {
		l.store.Update(r)

		if l.recorder != nil {
			if err := l.recorder.RecordReading(l.sessionID, r); err != nil {
				monitoring.Logf("failed to record %s reading: %v", r.Type, err)
			}
		}
	}

	return nil
}

// Close closes the UDP listener and releases resources.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

package ingest

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/oakfield-data/motion.report/internal/monitoring"
)

// dropStats is the subset of PacketStats the forwarder needs.
type dropStats interface {
	AddDropped()
}

// PacketForwarder handles asynchronous forwarding of raw datagrams to a
// secondary UDP address, so a second dashboard or recorder can consume the
// same stream. Forwarding is non-blocking: a full buffer drops the datagram
// rather than stalling the receive loop.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       dropStats
	logInterval time.Duration
	address     string
}

// NewPacketForwarder creates a forwarder that re-sends datagrams to addr.
func NewPacketForwarder(addr string, stats dropStats, logInterval time.Duration) (*PacketForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %v", err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %v", err)
	}

	if logInterval <= 0 {
		logInterval = time.Minute
	}

	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		stats:       stats,
		logInterval: logInterval,
		address:     addr,
	}, nil
}

// Start begins the forwarding goroutine. Send errors are counted and logged
// at the configured interval rather than per packet.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet := <-f.channel:
				if _, err := f.conn.Write(packet); err != nil {
					droppedCount++
					lastError = err
				}
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					monitoring.Logf("Dropped %d forwarded datagrams due to errors (latest: %v)", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("Forwarding datagrams to %s", f.address)
}

// ForwardAsync queues a datagram for forwarding without blocking. If the
// channel is full the datagram is dropped and the drop counter incremented.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Close closes the forwarding connection.
func (f *PacketForwarder) Close() error {
	return f.conn.Close()
}

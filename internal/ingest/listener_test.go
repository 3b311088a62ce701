package ingest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/oakfield-data/motion.report/internal/store"
	"github.com/oakfield-data/motion.report/internal/telemetry"
)

// startListener binds a listener on a kernel-assigned loopback port and
// returns the dial address. Binding explicitly first avoids a race between
// Start and the test's send.
func startListener(t *testing.T, cfg Config) (*UDPListener, string, context.CancelFunc) {
	t.Helper()

	probe, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to pick a free port: %v", err)
	}
	addr := probe.LocalAddr().String()
	probe.Close()

	cfg.Address = addr
	cfg.ReadTimeout = 50 * time.Millisecond
	l := NewUDPListener(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		close(started)
		l.Start(ctx)
	}()
	<-started
	// Give Start a moment to bind before the caller sends.
	time.Sleep(50 * time.Millisecond)

	return l, addr, cancel
}

func sendDatagram(t *testing.T, addr string, payload []byte) {
	t.Helper()
	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", addr, err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("failed to send datagram: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestListenerEndToEnd(t *testing.T) {
	st := store.New(10)
	defer st.Close()

	l, addr, cancel := startListener(t, Config{Store: st})
	defer cancel()

	payload := []byte(`{"type":1,"name":"accel","ts_ns":1,"values":[0.1,0.2,9.8]}` + "\n" +
		`{"type":11,"name":"rotation","ts_ns":2,"values":[0,0,0,1]}` + "\n")
	sendDatagram(t, addr, payload)

	waitFor(t, 2*time.Second, func() bool {
		_, ok := st.Latest(telemetry.TypeAccelerometer)
		return ok
	})

	if _, ok := st.Orientation(); !ok {
		t.Error("rotation-vector reading did not update orientation")
	}

	packets, bytes, readings, failures, _ := l.Stats().Snapshot()
	if packets != 1 || bytes != int64(len(payload)) || readings != 2 || failures != 0 {
		t.Errorf("stats = %d packets, %d bytes, %d readings, %d failures", packets, bytes, readings, failures)
	}
	if l.LastPacket().IsZero() {
		t.Error("LastPacket not updated")
	}
	if l.Stale(time.Minute) {
		t.Error("listener stale right after a packet")
	}
}

func TestListenerRecoversFromDecodeError(t *testing.T) {
	st := store.New(10)
	defer st.Close()

	l, addr, cancel := startListener(t, Config{Store: st})
	defer cancel()

	sendDatagram(t, addr, []byte("garbage that is not json\n"))
	sendDatagram(t, addr, []byte(`{"type":4,"name":"gyro","ts_ns":1,"values":[1,2,3]}`+"\n"))

	waitFor(t, 2*time.Second, func() bool {
		_, ok := st.Latest(telemetry.TypeGyroscope)
		return ok
	})

	_, _, _, failures, _ := l.Stats().Snapshot()
	if failures != 1 {
		t.Errorf("decode failures = %d, want 1", failures)
	}
}

func TestListenerRecordsReadings(t *testing.T) {
	st := store.New(10)
	defer st.Close()

	rec := &fakeRecorder{}
	_, addr, cancel := startListener(t, Config{Store: st, Recorder: rec, SessionID: "sess-1"})
	defer cancel()

	sendDatagram(t, addr, []byte(`{"type":5,"name":"light","ts_ns":1,"values":[87]}`+"\n"))

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sessions[0] != "sess-1" || rec.readings[0].Type != telemetry.TypeLight {
		t.Errorf("recorded session=%q type=%v", rec.sessions[0], rec.readings[0].Type)
	}
}

func TestListenerBindFailureIsFatal(t *testing.T) {
	// Occupy a port, then ask the listener to bind it.
	occupied, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer occupied.Close()

	l := NewUDPListener(Config{Address: occupied.LocalAddr().String(), Store: store.New(10)})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Start(ctx); err == nil {
		t.Fatal("Start should return an error when the port is taken")
	}
}

func TestListenerStopsOnCancel(t *testing.T) {
	st := store.New(10)
	defer st.Close()

	probe, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to pick a free port: %v", err)
	}
	addr := probe.LocalAddr().String()
	probe.Close()

	l := NewUDPListener(Config{Address: addr, ReadTimeout: 20 * time.Millisecond, Store: st})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []string
	readings []telemetry.Reading
}

func (f *fakeRecorder) RecordReading(sessionID string, r telemetry.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings)
}

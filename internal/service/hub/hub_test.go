package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	xlogger "SigPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignalInserted(string, string) {}
func (nopMetrics) RecordDuplicate(string)              {}
func (nopMetrics) RecordConnectorEvents(string, int)   {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}
func (nopMetrics) SetHubConnections(int)               {}

// fakeSink records frames; optionally fails writes or pings.
type fakeSink struct {
	mu       sync.Mutex
	frames   []*Message
	pings    int
	closed   bool
	writeErr error
	pingErr  error
}

func (s *fakeSink) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	// round-trip to freeze the payload like a real socket would
	b, _ := json.Marshal(v)
	var m Message
	_ = json.Unmarshal(b, &m)
	s.frames = append(s.frames, &m)
	return nil
}

func (s *fakeSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return s.pingErr
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(time.Minute, 4, nopMetrics{}, l)
}

func signalOf(cat models.Category) *models.Signal {
	return &models.Signal{ID: "sig-1", Category: cat, Title: "t", DetectedAt: time.Now().UTC()}
}

func waitFrames(t *testing.T, s *fakeSink, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.frameCount() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, have %d", want, s.frameCount())
}

func TestPublishDefaultSubscription(t *testing.T) {
	h := newTestHub(t)
	sink := &fakeSink{}
	conn := h.Register(sink)
	defer h.Unregister(conn.ID)

	if n := h.Publish(signalOf(models.CategorySeismic)); n != 1 {
		t.Fatalf("new connection should receive everything, queued=%d", n)
	}
	waitFrames(t, sink, 1)
	if sink.frames[0].Type != "signal" {
		t.Fatalf("frame type: %q", sink.frames[0].Type)
	}
}

func TestSubscribeNarrows(t *testing.T) {
	h := newTestHub(t)
	sink := &fakeSink{}
	conn := h.Register(sink)
	defer h.Unregister(conn.ID)

	conn.Subscribe(models.CategorySeismic)

	if n := h.Publish(signalOf(models.CategoryHealth)); n != 0 {
		t.Fatalf("health signal should not reach a seismic-only subscriber, queued=%d", n)
	}
	if n := h.Publish(signalOf(models.CategorySeismic)); n != 1 {
		t.Fatalf("seismic signal should reach the subscriber, queued=%d", n)
	}
	waitFrames(t, sink, 1)
}

func TestUnsubscribeFromDefault(t *testing.T) {
	h := newTestHub(t)
	sink := &fakeSink{}
	conn := h.Register(sink)
	defer h.Unregister(conn.ID)

	// dropping one category from the default subscription keeps the rest
	conn.Unsubscribe(models.CategorySolar)

	if n := h.Publish(signalOf(models.CategorySolar)); n != 0 {
		t.Fatalf("unsubscribed category delivered, queued=%d", n)
	}
	if n := h.Publish(signalOf(models.CategoryCrypto)); n != 1 {
		t.Fatalf("remaining categories should still deliver, queued=%d", n)
	}
}

func TestSlowConsumerIsolated(t *testing.T) {
	h := newTestHub(t)

	// a write error stalls this sink's writer immediately
	slow := &fakeSink{writeErr: errors.New("broken pipe")}
	fast := &fakeSink{}
	slowConn := h.Register(slow)
	fastConn := h.Register(fast)
	defer h.Unregister(fastConn.ID)
	_ = slowConn

	for i := 0; i < 10; i++ {
		h.Publish(signalOf(models.CategorySeismic))
	}
	waitFrames(t, fast, 1)
	if fast.frameCount() == 0 {
		t.Fatalf("healthy consumer starved by broken one")
	}
}

func TestSweepEvictsDead(t *testing.T) {
	h := newTestHub(t)
	sink := &fakeSink{}
	conn := h.Register(sink)

	// first sweep: alive -> probed and marked stale
	h.sweep()
	sink.mu.Lock()
	pings := sink.pings
	sink.mu.Unlock()
	if pings != 1 {
		t.Fatalf("expected 1 ping, got %d", pings)
	}

	// no MarkAlive in between: second sweep evicts
	h.sweep()
	if got := h.Stats().Connections; got != 0 {
		t.Fatalf("dead connection not evicted, connections=%d", got)
	}
	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if !closed {
		t.Fatalf("evicted sink not closed")
	}
	_ = conn
}

func TestSweepKeepsResponsive(t *testing.T) {
	h := newTestHub(t)
	sink := &fakeSink{}
	conn := h.Register(sink)
	defer h.Unregister(conn.ID)

	h.sweep()
	conn.MarkAlive() // client answered the probe
	h.sweep()

	if got := h.Stats().Connections; got != 1 {
		t.Fatalf("responsive connection evicted, connections=%d", got)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := newTestHub(t)
	conn := h.Register(&fakeSink{})
	h.Unregister(conn.ID)
	h.Unregister(conn.ID)
	if got := h.Stats().Connections; got != 0 {
		t.Fatalf("connections=%d", got)
	}
}

func TestStatsCountersMove(t *testing.T) {
	h := newTestHub(t)
	sink := &fakeSink{}
	conn := h.Register(sink)
	defer h.Unregister(conn.ID)

	h.Publish(signalOf(models.CategorySeismic))
	waitFrames(t, sink, 1)

	st := h.Stats()
	if st.Delivered == 0 {
		t.Fatalf("delivered counter stuck at zero")
	}
	if st.Connections != 1 {
		t.Fatalf("connections=%d", st.Connections)
	}
}

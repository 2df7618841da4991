package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	internalrepo "SigPulse/internal/repository"
	"SigPulse/internal/service/hub"
	xlogger "SigPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignalInserted(string, string) {}
func (nopMetrics) RecordDuplicate(string)              {}
func (nopMetrics) RecordConnectorEvents(string, int)   {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}
func (nopMetrics) SetHubConnections(int)               {}

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// stubConnector yields a fixed candidate list or a fixed error.
type stubConnector struct {
	name  string
	cands []*models.CandidateSignal
	err   error
}

func (c *stubConnector) Name() string { return c.name }
func (c *stubConnector) Fetch(context.Context) ([]*models.CandidateSignal, error) {
	return c.cands, c.err
}

func stubCandidate(cat models.Category, title string, at time.Time) *models.CandidateSignal {
	return &models.CandidateSignal{
		Category:   cat,
		Source:     "stub",
		Direction:  models.DirectionBearish,
		Strength:   0.5,
		Confidence: 0.6,
		Title:      title,
		Rationale:  "stub rationale",
		DetectedAt: at,
	}
}

// recordingSink captures frames delivered through the hub.
type recordingSink struct {
	mu     sync.Mutex
	frames []*hub.Message
}

func (s *recordingSink) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, _ := json.Marshal(v)
	var m hub.Message
	_ = json.Unmarshal(b, &m)
	s.frames = append(s.frames, &m)
	return nil
}
func (s *recordingSink) Ping() error  { return nil }
func (s *recordingSink) Close() error { return nil }
func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newEnv(t *testing.T) (*internalrepo.MemorySignalStore, *hub.Hub, *SignalProcessor) {
	t.Helper()
	l := testLogger(t)
	store := internalrepo.NewMemorySignalStore()
	h := hub.New(time.Minute, 8, nopMetrics{}, l)
	proc := NewSignalProcessor(store, h, internalrepo.NopPublisher{}, nopMetrics{}, l)
	return store, h, proc
}

func TestTriggerRunsAllConnectors(t *testing.T) {
	store, _, proc := newEnv(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	conns := []drepo.Connector{
		&stubConnector{name: "seismic", cands: []*models.CandidateSignal{
			stubCandidate(models.CategorySeismic, "quake A", at),
			stubCandidate(models.CategorySeismic, "quake B", at.Add(time.Minute)),
		}},
		&stubConnector{name: "health", cands: []*models.CandidateSignal{
			stubCandidate(models.CategoryHealth, "surge", at),
		}},
		&stubConnector{name: "solar", cands: nil},
		&stubConnector{name: "news", err: errors.New("upstream 502")},
	}

	sched := NewScheduler(conns, proc, store, nopMetrics{}, testLogger(t), time.Hour, 10*time.Second)
	summary := sched.Trigger(context.Background())

	if summary.Connectors != 4 {
		t.Fatalf("connectors=%d", summary.Connectors)
	}
	if summary.Fetched != 3 || summary.Inserted != 3 || summary.Duplicates != 0 {
		t.Fatalf("counts wrong: %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures["news"] == "" {
		t.Fatalf("failing connector missing from summary: %+v", summary.Failures)
	}

	// the failing connector must not block the others' inserts
	st, _ := store.Stats(context.Background())
	if st.Total != 3 {
		t.Fatalf("stored %d, want 3", st.Total)
	}
}

func TestRepeatCycleDeduplicates(t *testing.T) {
	store, _, proc := newEnv(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	conn := &stubConnector{name: "seismic", cands: []*models.CandidateSignal{
		stubCandidate(models.CategorySeismic, "quake A", at),
	}}

	sched := NewScheduler([]drepo.Connector{conn}, proc, store, nopMetrics{}, testLogger(t), time.Hour, 10*time.Second)
	first := sched.Trigger(context.Background())
	second := sched.Trigger(context.Background())

	if first.Inserted != 1 || first.Duplicates != 0 {
		t.Fatalf("first cycle: %+v", first)
	}
	if second.Inserted != 0 || second.Duplicates != 1 {
		t.Fatalf("second cycle should only see duplicates: %+v", second)
	}

	st, _ := store.Stats(context.Background())
	if st.Total != 1 {
		t.Fatalf("stored %d, want 1", st.Total)
	}
}

func TestCycleAbortsWhenStoreDown(t *testing.T) {
	l := testLogger(t)
	store := &downStore{}
	h := hub.New(time.Minute, 8, nopMetrics{}, l)
	proc := NewSignalProcessor(store, h, internalrepo.NopPublisher{}, nopMetrics{}, l)

	called := false
	conn := &probeConnector{onFetch: func() { called = true }}
	sched := NewScheduler([]drepo.Connector{conn}, proc, store, nopMetrics{}, l, time.Hour, 10*time.Second)

	summary := sched.Trigger(context.Background())
	if !summary.Aborted {
		t.Fatalf("cycle should abort on store outage")
	}
	if called {
		t.Fatalf("connectors fetched despite aborted cycle")
	}
}

func TestLastSummaryIsCopy(t *testing.T) {
	store, _, proc := newEnv(t)
	sched := NewScheduler(nil, proc, store, nopMetrics{}, testLogger(t), time.Hour, 10*time.Second)

	if sched.LastSummary() != nil {
		t.Fatalf("no summary expected before first cycle")
	}
	sched.Trigger(context.Background())

	s1 := sched.LastSummary()
	s1.Fetched = 999
	if s2 := sched.LastSummary(); s2.Fetched == 999 {
		t.Fatalf("summary mutation leaked")
	}
}

func TestCycleDeliversToSubscribers(t *testing.T) {
	store, h, proc := newEnv(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seismicSink := &recordingSink{}
	healthSink := &recordingSink{}
	sc := h.Register(seismicSink)
	hc := h.Register(healthSink)
	defer h.Unregister(sc.ID)
	defer h.Unregister(hc.ID)
	sc.Subscribe(models.CategorySeismic)
	hc.Subscribe(models.CategoryHealth)

	conn := &stubConnector{name: "seismic", cands: []*models.CandidateSignal{
		stubCandidate(models.CategorySeismic, "quake A", at),
	}}
	sched := NewScheduler([]drepo.Connector{conn}, proc, store, nopMetrics{}, testLogger(t), time.Hour, 10*time.Second)
	sched.Trigger(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && seismicSink.count() < 1 {
		time.Sleep(5 * time.Millisecond)
	}
	if seismicSink.count() != 1 {
		t.Fatalf("seismic subscriber frames=%d, want 1", seismicSink.count())
	}
	if healthSink.count() != 0 {
		t.Fatalf("health-only subscriber received %d frames", healthSink.count())
	}

	frame := seismicSink.frames[0]
	if frame.Type != "signal" {
		t.Fatalf("frame type %q", frame.Type)
	}
}

// downStore fails health checks; everything else is unreachable in these
// tests.
type downStore struct {
	internalrepo.MemorySignalStore
}

func (s *downStore) Health(context.Context) error { return errors.New("connection refused") }

type probeConnector struct {
	onFetch func()
}

func (c *probeConnector) Name() string { return "probe" }
func (c *probeConnector) Fetch(context.Context) ([]*models.CandidateSignal, error) {
	c.onFetch()
	return nil, nil
}

// stalledConnector ignores its context entirely.
type stalledConnector struct {
	delay time.Duration
}

func (c *stalledConnector) Name() string { return "stalled" }
func (c *stalledConnector) Fetch(context.Context) ([]*models.CandidateSignal, error) {
	time.Sleep(c.delay)
	return nil, nil
}

func TestCycleDeadlineReportsStalledConnector(t *testing.T) {
	store, _, proc := newEnv(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	conns := []drepo.Connector{
		&stalledConnector{delay: 2 * time.Second},
		&stubConnector{name: "seismic", cands: []*models.CandidateSignal{
			stubCandidate(models.CategorySeismic, "quake A", at),
		}},
	}
	sched := NewScheduler(conns, proc, store, nopMetrics{}, testLogger(t), time.Hour, 100*time.Millisecond)

	start := time.Now()
	summary := sched.Trigger(context.Background())
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("cycle ran %v past a 100ms deadline", elapsed)
	}
	if summary.Failures["stalled"] != "timeout" {
		t.Fatalf("stalled connector not reported: %+v", summary.Failures)
	}
	if summary.Inserted != 1 {
		t.Fatalf("responsive connector's insert lost: %+v", summary)
	}
}

type panickyConnector struct{}

func (c *panickyConnector) Name() string { return "panicky" }
func (c *panickyConnector) Fetch(context.Context) ([]*models.CandidateSignal, error) {
	panic("bad payload")
}

func TestPanickingConnectorLandsInSummary(t *testing.T) {
	store, _, proc := newEnv(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	conns := []drepo.Connector{
		&panickyConnector{},
		&stubConnector{name: "seismic", cands: []*models.CandidateSignal{
			stubCandidate(models.CategorySeismic, "quake A", at),
		}},
	}
	sched := NewScheduler(conns, proc, store, nopMetrics{}, testLogger(t), time.Hour, 10*time.Second)
	summary := sched.Trigger(context.Background())

	if summary.Failures["panicky"] == "" {
		t.Fatalf("panicking connector missing from summary: %+v", summary.Failures)
	}
	if summary.Inserted != 1 {
		t.Fatalf("sibling connector affected by panic: %+v", summary)
	}
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	drepo "SigPulse/internal/domain/repository"
	xlogger "SigPulse/pkg/logger"
)

// CycleSummary describes the most recent fetch cycle.
type CycleSummary struct {
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	Connectors int               `json:"connectors"`
	Fetched    int               `json:"fetched"`
	Inserted   int               `json:"inserted"`
	Duplicates int               `json:"duplicates"`
	Failures   map[string]string `json:"failures,omitempty"`
	Aborted    bool              `json:"aborted,omitempty"`
}

type connResult struct {
	name                    string
	fetched, inserted, dups int
	err                     error
}

// Scheduler drives periodic fetch cycles across all connectors. Connectors
// run concurrently within a cycle; one failing connector never blocks the
// others, and its error lands in the cycle summary instead.
type Scheduler struct {
	connectors   []drepo.Connector
	proc         *SignalProcessor
	store        drepo.SignalStore
	metrics      drepo.Metrics
	logger       *xlogger.Logger
	interval     time.Duration
	cycleTimeout time.Duration

	mu   sync.RWMutex
	last *CycleSummary
}

func NewScheduler(
	connectors []drepo.Connector,
	proc *SignalProcessor,
	store drepo.SignalStore,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	interval, cycleTimeout time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if cycleTimeout <= 0 {
		cycleTimeout = 60 * time.Second
	}
	return &Scheduler{
		connectors:   connectors,
		proc:         proc,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		interval:     interval,
		cycleTimeout: cycleTimeout,
	}
}

// Run executes one cycle immediately, then one per interval until ctx is
// done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

// Trigger runs one fetch cycle now. Also serves the manual refresh path.
func (s *Scheduler) Trigger(ctx context.Context) *CycleSummary {
	start := time.Now().UTC()
	summary := &CycleSummary{
		StartedAt:  start,
		Connectors: len(s.connectors),
		Failures:   make(map[string]string),
	}

	// A cycle against a dead store would fetch and then drop everything.
	if err := s.store.Health(ctx); err != nil {
		s.metrics.RecordError("cycle_store_unavailable")
		s.logger.Error("fetch cycle aborted, store unavailable", xlogger.Error(err))
		summary.Aborted = true
		summary.Duration = time.Since(start)
		s.setLast(summary)
		return summary
	}

	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	// Buffered so connectors finishing after the deadline never leak a
	// blocked goroutine.
	results := make(chan connResult, len(s.connectors))
	pending := make(map[string]struct{}, len(s.connectors))
	for _, conn := range s.connectors {
		pending[conn.Name()] = struct{}{}
		go func(conn drepo.Connector) {
			fetched, inserted, dups, err := s.runConnector(cycleCtx, conn)
			results <- connResult{name: conn.Name(), fetched: fetched, inserted: inserted, dups: dups, err: err}
		}(conn)
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.name)
			summary.Fetched += r.fetched
			summary.Inserted += r.inserted
			summary.Duplicates += r.dups
			if r.err != nil {
				summary.Failures[r.name] = r.err.Error()
			}
		case <-cycleCtx.Done():
			// Connectors that ignore the deadline count as empty and
			// are reported; the cycle moves on without them.
			for name := range pending {
				summary.Failures[name] = "timeout"
				s.metrics.RecordError("connector_timeout")
				s.logger.Warn("connector timed out", xlogger.String("connector", name))
			}
			pending = nil
		}
	}

	summary.Duration = time.Since(start)
	s.metrics.RecordLatency("fetch_cycle", summary.Duration.Seconds())
	s.logger.Info("fetch cycle finished",
		xlogger.Int("fetched", summary.Fetched),
		xlogger.Int("inserted", summary.Inserted),
		xlogger.Int("duplicates", summary.Duplicates),
		xlogger.Int("failures", len(summary.Failures)),
		xlogger.Duration("duration", summary.Duration),
	)
	s.setLast(summary)
	return summary
}

func (s *Scheduler) runConnector(ctx context.Context, conn drepo.Connector) (fetched, inserted, dups int, err error) {
	defer func() {
		// A panicking connector must not take the cycle down with it,
		// but it still lands in the summary.
		if r := recover(); r != nil {
			s.metrics.RecordError("connector_panic")
			s.logger.Error("connector panicked", xlogger.String("connector", conn.Name()), xlogger.Any("panic", r))
			err = fmt.Errorf("connector panic: %v", r)
		}
	}()

	cands, err := conn.Fetch(ctx)
	if err != nil {
		s.metrics.RecordError("connector_fetch")
		s.logger.Warn("connector fetch failed", xlogger.String("connector", conn.Name()), xlogger.Error(err))
		return 0, 0, 0, err
	}
	s.metrics.RecordConnectorEvents(conn.Name(), len(cands))
	fetched = len(cands)

	for _, cand := range cands {
		ok, perr := s.proc.Accept(ctx, cand)
		if perr != nil {
			s.logger.Warn("candidate rejected",
				xlogger.String("connector", conn.Name()),
				xlogger.String("title", cand.Title),
				xlogger.Error(perr),
			)
			continue
		}
		if ok {
			inserted++
		} else {
			dups++
		}
	}
	return fetched, inserted, dups, nil
}

func (s *Scheduler) setLast(c *CycleSummary) {
	s.mu.Lock()
	s.last = c
	s.mu.Unlock()
}

// LastSummary returns the most recent cycle summary, nil before the first
// cycle completes.
func (s *Scheduler) LastSummary() *CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	c := *s.last
	return &c
}

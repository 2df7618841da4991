package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
)

// ErrBusy means a throttled candidate could not be buffered either; the
// caller should retry later.
var ErrBusy = errors.New("ingest pipeline saturated")

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, cand *models.CandidateSignal) error
}

// IngestPipeline sits between the admin ingestion surfaces (HTTP endpoint,
// Kafka ingest topic) and the signal processor. It validates, throttles per
// source, and buffers candidates when the store is unavailable so an
// externally submitted signal survives a short outage.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.CandidateSignal
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-source last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max accepted candidates per second per source.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when the store is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.CandidateSignal, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.CandidateSignal, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered candidates.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case cand := <-p.bufCh:
				if cand == nil {
					continue
				}
				if err := p.proc.Process(ctx, cand); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- cand:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the candidate downstream,
// buffering on processor errors.
func (p *IngestPipeline) Process(ctx context.Context, cand *models.CandidateSignal) error {
	start := time.Now()
	if err := validateCandidate(cand); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(cand.Source, start) {
		// throttled; defer to the background flusher so the candidate
		// still reaches the store
		p.metrics.RecordError("pipeline_throttle")
		select {
		case p.bufCh <- cand:
			return nil
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			return ErrBusy
		}
	}

	if err := p.proc.Process(ctx, cand); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- cand:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateCandidate(cand *models.CandidateSignal) error {
	if cand == nil {
		return fmt.Errorf("candidate nil")
	}
	if cand.Title == "" {
		return fmt.Errorf("title empty")
	}
	if cand.DetectedAt.IsZero() {
		return fmt.Errorf("detected_at missing")
	}
	if !domrepo.IsValidCategory(cand.Category) {
		return fmt.Errorf("unknown category %q", cand.Category)
	}
	if cand.Strength < 0 || cand.Strength > 1 || cand.Confidence < 0 || cand.Confidence > 1 {
		return fmt.Errorf("strength/confidence out of range")
	}
	return nil
}

func (p *IngestPipeline) allow(source string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[source]
	if last.IsZero() {
		p.lastSeen[source] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[source] = now
	return true
}

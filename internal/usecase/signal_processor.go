package usecase

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	xlogger "SigPulse/pkg/logger"
)

// SignalProcessor is the single write path for candidate signals. Every
// source (scheduler cycles, the ingestion endpoint, the Kafka ingest topic)
// funnels through here so dedup, broadcast, and egress behave identically
// regardless of where a candidate came from.
type SignalProcessor struct {
	store   drepo.SignalStore
	hub     drepo.Broadcaster
	pub     drepo.Publisher
	metrics drepo.Metrics
	logger  *xlogger.Logger
}

func NewSignalProcessor(
	store drepo.SignalStore,
	hub drepo.Broadcaster,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
) *SignalProcessor {
	return &SignalProcessor{store: store, hub: hub, pub: pub, metrics: metrics, logger: logger}
}

// Accept stores one candidate and, when it is new, fans it out to live
// subscribers and the egress topic. Returns whether the candidate was new.
// Broadcast and egress failures never fail the accept: the store is the
// source of truth and downstream delivery is best effort.
func (p *SignalProcessor) Accept(ctx context.Context, cand *models.CandidateSignal) (bool, error) {
	if cand == nil {
		return false, fmt.Errorf("candidate is nil")
	}

	start := time.Now()
	sig, inserted, err := p.store.Insert(ctx, cand)
	if err != nil {
		p.metrics.RecordError("store_insert")
		return false, fmt.Errorf("insert signal: %w", err)
	}
	if !inserted {
		p.metrics.RecordDuplicate(cand.Source)
		return false, nil
	}

	p.metrics.RecordSignalInserted(string(sig.Category), sig.Source)
	p.metrics.RecordLatency("signal_insert", time.Since(start).Seconds())

	queued := p.hub.Publish(sig)
	p.logger.Info("signal accepted",
		xlogger.String("id", sig.ID),
		xlogger.String("category", string(sig.Category)),
		xlogger.String("direction", string(sig.Direction)),
		xlogger.String("title", sig.Title),
		xlogger.Int("subscribers", queued),
	)

	if p.pub != nil {
		if err := p.pub.Publish(ctx, sig); err != nil {
			p.metrics.RecordError("egress_publish")
			p.logger.Warn("egress publish failed", xlogger.String("id", sig.ID), xlogger.Error(err))
		}
	}
	return true, nil
}

// Process adapts Accept to the ingest pipeline's processor interface.
func (p *SignalProcessor) Process(ctx context.Context, cand *models.CandidateSignal) error {
	_, err := p.Accept(ctx, cand)
	return err
}

// Close releases the egress publisher and the store.
func (p *SignalProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

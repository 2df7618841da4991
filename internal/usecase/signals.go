package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	"SigPulse/internal/service/accuracy"
	"SigPulse/internal/service/hub"
	"SigPulse/internal/service/ratelimit"
	"SigPulse/pkg/cache"
	xlogger "SigPulse/pkg/logger"
)

const statsCacheKey = "stats:report"
const statsCacheTTL = 15 * time.Second

// StatsReport is the combined system snapshot served by the stats endpoint.
type StatsReport struct {
	Signals     *models.SignalStats        `json:"signals"`
	Accuracy    []*models.CategoryAccuracy `json:"accuracy"`
	LastCycle   *CycleSummary              `json:"last_cycle,omitempty"`
	Hub         hub.Stats                  `json:"hub"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// SignalService is the read side of the system plus the outcome write path.
// It pairs the store with the accuracy tracker so recording an outcome and
// updating the category posterior happen in one place.
type SignalService struct {
	store   drepo.SignalStore
	tracker *accuracy.Tracker
	window  *ratelimit.DailyWindow
	hub     *hub.Hub
	sched   *Scheduler
	cache   cache.Service
	logger  *xlogger.Logger
}

func NewSignalService(
	store drepo.SignalStore,
	tracker *accuracy.Tracker,
	window *ratelimit.DailyWindow,
	h *hub.Hub,
	sched *Scheduler,
	c cache.Service,
	logger *xlogger.Logger,
) *SignalService {
	return &SignalService{
		store:   store,
		tracker: tracker,
		window:  window,
		hub:     h,
		sched:   sched,
		cache:   c,
		logger:  logger,
	}
}

// List returns signals matching the filter, newest first, plus the total
// match count.
func (s *SignalService) List(ctx context.Context, f models.SignalFilter) ([]*models.Signal, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return s.store.Query(ctx, f)
}

// Get returns one signal by ID.
func (s *SignalService) Get(ctx context.Context, id string) (*models.Signal, error) {
	return s.store.Get(ctx, id)
}

// RecordOutcome marks a pending signal correct or incorrect and folds the
// result into the category posterior. The posterior update happens only on
// the first successful transition; a repeated call fails without touching
// the tracker.
func (s *SignalService) RecordOutcome(ctx context.Context, id string, outcome models.Outcome, actualReturn *float64) (*models.Signal, error) {
	sig, err := s.store.RecordOutcome(ctx, id, outcome, actualReturn)
	if err != nil {
		return nil, err
	}
	s.tracker.Update(sig.Category, outcome)
	s.invalidateStats(ctx)
	s.logger.Info("outcome recorded",
		xlogger.String("id", sig.ID),
		xlogger.String("category", string(sig.Category)),
		xlogger.String("outcome", string(outcome)),
	)
	return sig, nil
}

// Stats assembles the combined report, served from a short-TTL cache so a
// dashboard polling every second does not hammer the store.
func (s *SignalService) Stats(ctx context.Context) (*StatsReport, error) {
	if s.cache != nil {
		// Stored as a JSON string: the one value shape both cache backends
		// round-trip identically.
		var raw string
		if err := s.cache.Get(ctx, statsCacheKey, &raw); err == nil && raw != "" {
			var cached StatsReport
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && !cached.GeneratedAt.IsZero() {
				return &cached, nil
			}
		}
	}

	sigStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}

	report := &StatsReport{
		Signals:     sigStats,
		Accuracy:    s.tracker.AllSnapshots(),
		Hub:         s.hub.Stats(),
		GeneratedAt: time.Now().UTC(),
	}
	if s.sched != nil {
		report.LastCycle = s.sched.LastSummary()
	}

	if s.cache != nil {
		if b, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, string(b), statsCacheTTL); err != nil {
				s.logger.Warn("stats cache set failed", xlogger.Error(err))
			}
		}
	}
	return report, nil
}

func (s *SignalService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.logger.Warn("stats cache invalidate failed", xlogger.Error(err))
	}
}

// Usage reports the caller's quota consumption for today without consuming.
func (s *SignalService) Usage(ctx context.Context, identity string, tier drepo.Tier) (ratelimit.Decision, error) {
	return s.window.Usage(ctx, identity, tier)
}

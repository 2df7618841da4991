package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"

	"github.com/google/uuid"
)

// MemorySignalStore implements SignalStore with an in-process map. It is the
// authoritative reference for the dedup and outcome invariants and the
// backend used by tests and development.
type MemorySignalStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.Signal
	byDedup map[string]string // dedup key -> id
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{
		byID:    make(map[string]*models.Signal),
		byDedup: make(map[string]string),
	}
}

func (s *MemorySignalStore) Insert(_ context.Context, cand *models.CandidateSignal) (*models.Signal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cand.DedupKey()
	if id, ok := s.byDedup[key]; ok {
		dup := *s.byID[id]
		return &dup, false, nil
	}

	sig := &models.Signal{
		ID:           uuid.New().String(),
		Category:     cand.Category,
		Source:       cand.Source,
		SourceURL:    cand.SourceURL,
		TargetSymbol: cand.TargetSymbol,
		TargetSector: cand.TargetSector,
		Direction:    cand.Direction,
		Strength:     cand.Strength,
		Confidence:   cand.Confidence,
		Title:        cand.Title,
		Summary:      cand.Summary,
		Rationale:    cand.Rationale,
		RawPayload:   cand.RawPayload,
		DetectedAt:   cand.DetectedAt,
		ExpiresAt:    cand.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
		Outcome:      models.OutcomePending,
	}
	s.byID[sig.ID] = sig
	s.byDedup[key] = sig.ID

	out := *sig
	return &out, true, nil
}

func (s *MemorySignalStore) Get(_ context.Context, id string) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.byID[id]
	if !ok {
		return nil, drepo.ErrSignalNotFound
	}
	out := *sig
	return &out, nil
}

func (s *MemorySignalStore) Query(_ context.Context, f models.SignalFilter) ([]*models.Signal, int64, error) {
	s.mu.RLock()
	matched := make([]*models.Signal, 0, len(s.byID))
	for _, sig := range s.byID {
		if matches(sig, f) {
			matched = append(matched, sig)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].DetectedAt.Equal(matched[j].DetectedAt) {
			return matched[i].DetectedAt.After(matched[j].DetectedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	out := make([]*models.Signal, 0, end-start)
	for _, sig := range matched[start:end] {
		cp := *sig
		out = append(out, &cp)
	}
	return out, total, nil
}

func matches(s *models.Signal, f models.SignalFilter) bool {
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.Direction != "" && s.Direction != f.Direction {
		return false
	}
	if f.MinConfidence > 0 && s.Confidence < f.MinConfidence {
		return false
	}
	if f.Symbol != "" && s.TargetSymbol != f.Symbol {
		return false
	}
	if !f.Since.IsZero() && s.DetectedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && s.DetectedAt.After(f.Until) {
		return false
	}
	return true
}

func (s *MemorySignalStore) RecordOutcome(_ context.Context, id string, outcome models.Outcome, actualReturn *float64) (*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.byID[id]
	if !ok {
		return nil, drepo.ErrSignalNotFound
	}
	if sig.Outcome != models.OutcomePending {
		return nil, drepo.ErrOutcomeAlreadySet
	}
	sig.Outcome = outcome
	sig.ActualReturn = actualReturn

	out := *sig
	return &out, nil
}

func (s *MemorySignalStore) Stats(_ context.Context) (*models.SignalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &models.SignalStats{
		ByCategory:  make(map[string]int64),
		ByDirection: make(map[string]int64),
	}
	for _, sig := range s.byID {
		st.Total++
		st.ByCategory[string(sig.Category)]++
		st.ByDirection[string(sig.Direction)]++
		switch sig.Outcome {
		case models.OutcomePending:
			st.Pending++
		case models.OutcomeCorrect:
			st.Evaluated++
			st.Correct++
		case models.OutcomeIncorrect:
			st.Evaluated++
			st.Incorrect++
		}
	}
	return st, nil
}

func (s *MemorySignalStore) Health(context.Context) error { return nil }

func (s *MemorySignalStore) Close() error { return nil }

var _ drepo.SignalStore = (*MemorySignalStore)(nil)

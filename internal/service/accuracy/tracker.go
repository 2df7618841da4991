// Package accuracy maintains a Beta-Binomial posterior per signal category.
// The uniform (1,1) prior keeps early categories honest: with few recorded
// outcomes the 95% interval stays wide instead of quoting a confident
// point estimate.
package accuracy

import (
	"sync"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
)

// Tracker holds one posterior per category. Updates to the same category are
// serialized by a per-category mutex; different categories update
// independently.
type Tracker struct {
	mu         sync.RWMutex
	posteriors map[models.Category]*models.CategoryAccuracy
	locks      map[models.Category]*sync.Mutex
}

func NewTracker() *Tracker {
	return &Tracker{
		posteriors: make(map[models.Category]*models.CategoryAccuracy),
		locks:      make(map[models.Category]*sync.Mutex),
	}
}

// categoryLock returns the mutex owning cat, creating the posterior row with
// the uniform prior on first sight.
func (t *Tracker) categoryLock(cat models.Category) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.locks[cat]; !ok {
		t.locks[cat] = &sync.Mutex{}
		t.posteriors[cat] = models.NewCategoryAccuracy(cat)
	}
	return t.locks[cat]
}

// Update applies one recorded outcome: correct bumps alpha, anything else
// bumps beta. Exactly one increment per call, never decremented.
func (t *Tracker) Update(cat models.Category, outcome models.Outcome) {
	lock := t.categoryLock(cat)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	p := t.posteriors[cat]
	t.mu.RUnlock()

	if outcome == models.OutcomeCorrect {
		p.Alpha++
		p.CorrectSignals++
	} else {
		p.Beta++
		p.IncorrectSignals++
	}
	p.TotalSignals++
	p.Recompute()
}

// Snapshot returns a copy of one category's posterior, creating the prior
// row if the category has never been updated.
func (t *Tracker) Snapshot(cat models.Category) *models.CategoryAccuracy {
	lock := t.categoryLock(cat)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	p := *t.posteriors[cat]
	t.mu.RUnlock()
	return &p
}

// AllSnapshots returns copies for every known category, in the stable
// category order.
func (t *Tracker) AllSnapshots() []*models.CategoryAccuracy {
	out := make([]*models.CategoryAccuracy, 0, len(drepo.AllCategories))
	for _, cat := range drepo.AllCategories {
		t.mu.RLock()
		_, ok := t.posteriors[cat]
		t.mu.RUnlock()
		if !ok {
			continue
		}
		out = append(out, t.Snapshot(cat))
	}
	return out
}

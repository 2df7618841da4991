package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
)

func candidate(title string, detectedAt time.Time) *models.CandidateSignal {
	return &models.CandidateSignal{
		Category:   models.CategorySeismic,
		Source:     "usgs",
		Direction:  models.DirectionBearish,
		Strength:   0.5,
		Confidence: 0.7,
		Title:      title,
		Rationale:  "test rationale",
		DetectedAt: detectedAt,
	}
}

func TestInsertDeduplicates(t *testing.T) {
	s := NewMemorySignalStore()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first, inserted, err := s.Insert(ctx, candidate("M6.8 quake", at))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	second, inserted, err := s.Insert(ctx, candidate("M6.8 quake", at))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatalf("expected dedup hit")
	}
	if second.ID != first.ID {
		t.Fatalf("dedup returned different signal: %s vs %s", second.ID, first.ID)
	}

	// same title, different detection time: distinct event
	_, inserted, err = s.Insert(ctx, candidate("M6.8 quake", at.Add(time.Hour)))
	if err != nil || !inserted {
		t.Fatalf("distinct time should insert: inserted=%v err=%v", inserted, err)
	}

	st, _ := s.Stats(ctx)
	if st.Total != 2 {
		t.Fatalf("expected 2 stored, got %d", st.Total)
	}
}

func TestInsertStartsPending(t *testing.T) {
	s := NewMemorySignalStore()
	sig, _, err := s.Insert(context.Background(), candidate("x", time.Now().UTC()))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sig.Outcome != models.OutcomePending {
		t.Fatalf("expected pending outcome, got %s", sig.Outcome)
	}
	if sig.ID == "" || sig.CreatedAt.IsZero() {
		t.Fatalf("missing id or created_at")
	}
}

func TestRecordOutcomeOnce(t *testing.T) {
	s := NewMemorySignalStore()
	ctx := context.Background()
	sig, _, _ := s.Insert(ctx, candidate("x", time.Now().UTC()))

	ret := 0.031
	got, err := s.RecordOutcome(ctx, sig.ID, models.OutcomeCorrect, &ret)
	if err != nil {
		t.Fatalf("first outcome: %v", err)
	}
	if got.Outcome != models.OutcomeCorrect || got.ActualReturn == nil || *got.ActualReturn != ret {
		t.Fatalf("outcome not recorded: %+v", got)
	}

	if _, err := s.RecordOutcome(ctx, sig.ID, models.OutcomeIncorrect, nil); err != drepo.ErrOutcomeAlreadySet {
		t.Fatalf("expected ErrOutcomeAlreadySet, got %v", err)
	}

	// the stored outcome must be untouched by the failed transition
	stored, _ := s.Get(ctx, sig.ID)
	if stored.Outcome != models.OutcomeCorrect {
		t.Fatalf("outcome mutated by rejected transition: %s", stored.Outcome)
	}
}

func TestRecordOutcomeUnknownID(t *testing.T) {
	s := NewMemorySignalStore()
	if _, err := s.RecordOutcome(context.Background(), "nope", models.OutcomeCorrect, nil); err != drepo.ErrSignalNotFound {
		t.Fatalf("expected ErrSignalNotFound, got %v", err)
	}
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := NewMemorySignalStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		c := candidate(fmt.Sprintf("quake %d", i), base.Add(time.Duration(i)*time.Hour))
		c.Confidence = 0.5 + float64(i)*0.1
		if _, _, err := s.Insert(ctx, c); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	solar := candidate("storm", base.Add(10*time.Hour))
	solar.Category = models.CategorySolar
	solar.TargetSymbol = "ARKX"
	s.Insert(ctx, solar)

	rows, total, err := s.Query(ctx, models.SignalFilter{Category: models.CategorySeismic})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 5 || len(rows) != 5 {
		t.Fatalf("expected 5 seismic, got total=%d rows=%d", total, len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].DetectedAt.After(rows[i-1].DetectedAt) {
			t.Fatalf("rows not newest first at %d", i)
		}
	}

	// 0.8 and 0.9 pass; the solar signal sits at the 0.7 default
	rows, total, _ = s.Query(ctx, models.SignalFilter{MinConfidence: 0.75})
	if total != 2 {
		t.Fatalf("min_confidence filter: expected 2, got %d", total)
	}
	_ = rows

	rows, total, _ = s.Query(ctx, models.SignalFilter{Symbol: "ARKX"})
	if total != 1 || rows[0].Category != models.CategorySolar {
		t.Fatalf("symbol filter broken: total=%d", total)
	}

	rows, total, _ = s.Query(ctx, models.SignalFilter{
		Since: base.Add(2 * time.Hour),
		Until: base.Add(4 * time.Hour),
	})
	if total != 3 {
		t.Fatalf("time window: expected 3, got %d", total)
	}
}

func TestQueryPagination(t *testing.T) {
	s := NewMemorySignalStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		s.Insert(ctx, candidate(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	page1, total, _ := s.Query(ctx, models.SignalFilter{Limit: 3})
	page2, _, _ := s.Query(ctx, models.SignalFilter{Limit: 3, Offset: 3})
	page3, _, _ := s.Query(ctx, models.SignalFilter{Limit: 3, Offset: 6})

	if total != 7 {
		t.Fatalf("total should ignore pagination, got %d", total)
	}
	if len(page1) != 3 || len(page2) != 3 || len(page3) != 1 {
		t.Fatalf("page sizes %d/%d/%d", len(page1), len(page2), len(page3))
	}
	seen := make(map[string]bool)
	for _, p := range [][]*models.Signal{page1, page2, page3} {
		for _, sig := range p {
			if seen[sig.ID] {
				t.Fatalf("signal %s repeated across pages", sig.ID)
			}
			seen[sig.ID] = true
		}
	}

	// offset past the end is empty, not an error
	empty, _, err := s.Query(ctx, models.SignalFilter{Limit: 3, Offset: 100})
	if err != nil || len(empty) != 0 {
		t.Fatalf("offset past end: rows=%d err=%v", len(empty), err)
	}
}

func TestStatsCounts(t *testing.T) {
	s := NewMemorySignalStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	a, _, _ := s.Insert(ctx, candidate("a", base))
	b, _, _ := s.Insert(ctx, candidate("b", base.Add(time.Minute)))
	s.Insert(ctx, candidate("c", base.Add(2*time.Minute)))

	s.RecordOutcome(ctx, a.ID, models.OutcomeCorrect, nil)
	s.RecordOutcome(ctx, b.ID, models.OutcomeIncorrect, nil)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Pending != 1 || st.Evaluated != 2 || st.Correct != 1 || st.Incorrect != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.ByCategory["seismic"] != 3 {
		t.Fatalf("by_category: %+v", st.ByCategory)
	}
}

package usecase

import (
	"context"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	internalrepo "SigPulse/internal/repository"
	"SigPulse/internal/service/accuracy"
	"SigPulse/internal/service/hub"
	"SigPulse/internal/service/ratelimit"
	"SigPulse/pkg/cache"
)

func newService(t *testing.T) (*SignalService, *internalrepo.MemorySignalStore, *accuracy.Tracker) {
	t.Helper()
	l := testLogger(t)
	store := internalrepo.NewMemorySignalStore()
	tracker := accuracy.NewTracker()
	c := cache.NewMemoryCache()
	window := ratelimit.NewDailyWindow(c, 100)
	h := hub.New(time.Minute, 8, nopMetrics{}, l)
	svc := NewSignalService(store, tracker, window, h, nil, c, l)
	return svc, store, tracker
}

func TestRecordOutcomeUpdatesPosterior(t *testing.T) {
	svc, store, tracker := newService(t)
	ctx := context.Background()

	sig, _, _ := store.Insert(ctx, stubCandidate(models.CategorySeismic, "quake", time.Now().UTC()))

	got, err := svc.RecordOutcome(ctx, sig.ID, models.OutcomeCorrect, nil)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if got.Outcome != models.OutcomeCorrect {
		t.Fatalf("outcome %s", got.Outcome)
	}

	snap := tracker.Snapshot(models.CategorySeismic)
	if snap.Alpha != 2 || snap.Beta != 1 {
		t.Fatalf("posterior not updated: (%v,%v)", snap.Alpha, snap.Beta)
	}
}

func TestRepeatedOutcomeLeavesPosteriorAlone(t *testing.T) {
	svc, store, tracker := newService(t)
	ctx := context.Background()
	sig, _, _ := store.Insert(ctx, stubCandidate(models.CategorySeismic, "quake", time.Now().UTC()))

	svc.RecordOutcome(ctx, sig.ID, models.OutcomeCorrect, nil)
	if _, err := svc.RecordOutcome(ctx, sig.ID, models.OutcomeIncorrect, nil); err != drepo.ErrOutcomeAlreadySet {
		t.Fatalf("expected ErrOutcomeAlreadySet, got %v", err)
	}

	snap := tracker.Snapshot(models.CategorySeismic)
	if snap.TotalSignals != 1 {
		t.Fatalf("rejected transition moved the posterior: %+v", snap)
	}
}

func TestListClampsLimit(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		store.Insert(ctx, stubCandidate(models.CategorySeismic, time.Duration(i).String(), base.Add(time.Duration(i)*time.Second)))
	}

	rows, total, err := svc.List(ctx, models.SignalFilter{Limit: 100000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 120 {
		t.Fatalf("total=%d", total)
	}
	if len(rows) != 100 {
		t.Fatalf("limit not clamped: %d rows", len(rows))
	}
}

func TestStatsReport(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	sig, _, _ := store.Insert(ctx, stubCandidate(models.CategorySeismic, "quake", time.Now().UTC()))
	svc.RecordOutcome(ctx, sig.ID, models.OutcomeCorrect, nil)

	report, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if report.Signals.Total != 1 || report.Signals.Correct != 1 {
		t.Fatalf("signal stats: %+v", report.Signals)
	}
	if len(report.Accuracy) != 1 || report.Accuracy[0].Category != models.CategorySeismic {
		t.Fatalf("accuracy block: %+v", report.Accuracy)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatalf("missing generated_at")
	}

	// second read comes from cache; a cached report still reflects the
	// recorded outcome taken before it was built
	again, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("cached stats: %v", err)
	}
	if !again.GeneratedAt.Equal(report.GeneratedAt) {
		t.Fatalf("expected cache hit, got fresh report")
	}
}

func TestOutcomeInvalidatesStatsCache(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	a, _, _ := store.Insert(ctx, stubCandidate(models.CategorySeismic, "a", time.Now().UTC()))
	first, _ := svc.Stats(ctx)

	svc.RecordOutcome(ctx, a.ID, models.OutcomeCorrect, nil)
	second, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatalf("stale stats served after outcome recorded")
	}
	if second.Signals.Correct != 1 {
		t.Fatalf("outcome missing from refreshed stats: %+v", second.Signals)
	}
}

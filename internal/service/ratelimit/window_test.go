package ratelimit

import (
	"context"
	"testing"
	"time"

	drepo "SigPulse/internal/domain/repository"
	"SigPulse/pkg/cache"
)

func fixedWindow(quota int64, now time.Time) *DailyWindow {
	w := NewDailyWindow(cache.NewMemoryCache(), quota)
	w.now = func() time.Time { return now }
	return w
}

func TestStandardQuotaBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	w := fixedWindow(3, now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		dec, err := w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !dec.Allowed {
			t.Fatalf("request %d within quota denied", i)
		}
		if dec.Used != int64(i) || dec.Limit != 3 {
			t.Fatalf("request %d: used=%d limit=%d", i, dec.Used, dec.Limit)
		}
	}

	dec, err := w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)
	if err != nil {
		t.Fatalf("over-quota consume: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("request over quota allowed")
	}
	wantReset := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	if !dec.ResetAt.Equal(wantReset) {
		t.Fatalf("reset at: want %v got %v", wantReset, dec.ResetAt)
	}
}

func TestWindowRollsAtUTCMidnight(t *testing.T) {
	c := cache.NewMemoryCache()
	w := NewDailyWindow(c, 2)
	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day1 }
	ctx := context.Background()

	w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)
	w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)
	if dec, _ := w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard); dec.Allowed {
		t.Fatalf("quota should be exhausted before midnight")
	}

	// one minute later it is a new UTC day and a fresh window
	w.now = func() time.Time { return day1.Add(time.Minute) }
	dec, err := w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)
	if err != nil {
		t.Fatalf("next-day consume: %v", err)
	}
	if !dec.Allowed || dec.Used != 1 {
		t.Fatalf("new day should start fresh: allowed=%v used=%d", dec.Allowed, dec.Used)
	}
}

func TestFreeTierDenied(t *testing.T) {
	w := fixedWindow(100, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	dec, err := w.CheckAndConsume(context.Background(), "acct-free", drepo.TierFree)
	if err != nil {
		t.Fatalf("free consume: %v", err)
	}
	if dec.Allowed || dec.Limit != 0 {
		t.Fatalf("free tier should never pass: %+v", dec)
	}
}

func TestUnknownTierTreatedAsFree(t *testing.T) {
	w := fixedWindow(100, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	dec, _ := w.CheckAndConsume(context.Background(), "acct-x", drepo.Tier("platinum"))
	if dec.Allowed {
		t.Fatalf("unrecognized tier silently upgraded")
	}
}

func TestUnlimitedNeverConsumes(t *testing.T) {
	w := fixedWindow(1, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		dec, err := w.CheckAndConsume(ctx, "acct-vip", drepo.TierUnlimited)
		if err != nil || !dec.Allowed {
			t.Fatalf("unlimited denied at %d: %+v err=%v", i, dec, err)
		}
		if dec.Limit != -1 {
			t.Fatalf("unlimited limit should be -1, got %d", dec.Limit)
		}
	}
}

func TestIdentitiesIndependent(t *testing.T) {
	w := fixedWindow(1, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	w.CheckAndConsume(ctx, "acct-a", drepo.TierStandard)
	if dec, _ := w.CheckAndConsume(ctx, "acct-a", drepo.TierStandard); dec.Allowed {
		t.Fatalf("acct-a should be exhausted")
	}
	if dec, _ := w.CheckAndConsume(ctx, "acct-b", drepo.TierStandard); !dec.Allowed {
		t.Fatalf("acct-b blocked by acct-a's usage")
	}
}

func TestUsageDoesNotConsume(t *testing.T) {
	w := fixedWindow(5, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)
	w.CheckAndConsume(ctx, "acct-1", drepo.TierStandard)

	for i := 0; i < 3; i++ {
		dec, err := w.Usage(ctx, "acct-1", drepo.TierStandard)
		if err != nil {
			t.Fatalf("usage: %v", err)
		}
		if dec.Used != 2 {
			t.Fatalf("usage read %d should report 2, got %d", i, dec.Used)
		}
	}
}

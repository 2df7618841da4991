// Package ratelimit implements the per-credential daily quota windows for
// the query gateway. A window is one counter per identity per UTC calendar
// day, created lazily by the first increment and expired by the day
// boundary; check-and-consume is a single atomic increment so concurrent
// requests cannot overshoot the quota.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	drepo "SigPulse/internal/domain/repository"
	"SigPulse/pkg/cache"
	"SigPulse/pkg/util"
)

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed bool
	Used    int64
	Limit   int64 // -1 means uncapped
	ResetAt time.Time
}

// DailyWindow enforces tiered daily quotas on top of a cache.Service
// (Redis in production, memory in tests).
type DailyWindow struct {
	cache         cache.Service
	standardQuota int64
	now           func() time.Time
}

func NewDailyWindow(c cache.Service, standardQuota int64) *DailyWindow {
	if standardQuota <= 0 {
		standardQuota = 500
	}
	return &DailyWindow{cache: c, standardQuota: standardQuota, now: time.Now}
}

func (w *DailyWindow) key(identity string, day string) string {
	return fmt.Sprintf("quota:%s:%s", identity, day)
}

// CheckAndConsume atomically consumes one request from the identity's
// window for today. Free tier never passes; unlimited never consumes.
func (w *DailyWindow) CheckAndConsume(ctx context.Context, identity string, tier drepo.Tier) (Decision, error) {
	now := w.now().UTC()
	reset := util.NextUTCMidnight(now)

	switch tier {
	case drepo.TierUnlimited:
		return Decision{Allowed: true, Limit: -1, ResetAt: reset}, nil
	case drepo.TierStandard:
	default:
		// free and anything unrecognized: no programmatic access
		return Decision{Allowed: false, Limit: 0, ResetAt: reset}, nil
	}

	key := w.key(identity, util.UTCDayKey(now))
	n, err := w.cache.Increment(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("quota increment: %w", err)
	}
	if n == 1 {
		// first hit of the day: bound the key's life to the window
		if _, err := w.cache.Expire(ctx, key, reset.Sub(now)); err != nil {
			return Decision{}, fmt.Errorf("quota expire: %w", err)
		}
	}

	if n > w.standardQuota {
		return Decision{Allowed: false, Used: w.standardQuota, Limit: w.standardQuota, ResetAt: reset}, nil
	}
	return Decision{Allowed: true, Used: n, Limit: w.standardQuota, ResetAt: reset}, nil
}

// Usage reports the identity's consumption today without consuming.
func (w *DailyWindow) Usage(ctx context.Context, identity string, tier drepo.Tier) (Decision, error) {
	now := w.now().UTC()
	reset := util.NextUTCMidnight(now)

	switch tier {
	case drepo.TierUnlimited:
		return Decision{Allowed: true, Limit: -1, ResetAt: reset}, nil
	case drepo.TierStandard:
	default:
		return Decision{Allowed: false, Limit: 0, ResetAt: reset}, nil
	}

	used, err := w.currentCount(ctx, w.key(identity, util.UTCDayKey(now)))
	if err != nil {
		return Decision{}, err
	}
	if used > w.standardQuota {
		used = w.standardQuota
	}
	return Decision{Allowed: used < w.standardQuota, Used: used, Limit: w.standardQuota, ResetAt: reset}, nil
}

// currentCount tolerates both backends: Redis INCR stores a numeric string,
// the memory cache stores an int64.
func (w *DailyWindow) currentCount(ctx context.Context, key string) (int64, error) {
	var raw interface{}
	if err := w.cache.Get(ctx, key, &raw); err != nil {
		if err == cache.ErrCacheMiss {
			return 0, nil
		}
		return 0, fmt.Errorf("quota read: %w", err)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("quota parse: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("quota value has unexpected type %T", raw)
	}
}

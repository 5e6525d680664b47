package cache

import (
	"context"
	"fmt"
	"time"
)

// RateWindow is a fixed-window request counter scoped to one key (one
// upstream provider). Each clock-hour window lives in its own Redis key
// with a TTL slightly past the window end, so stale windows clean
// themselves up.
type RateWindow struct {
	prefix string
	limit  int
	window time.Duration
}

// NewHourlyRateWindow creates a fixed-window limiter allowing `limit`
// requests per clock hour. A limit <= 0 means unlimited.
func NewHourlyRateWindow(prefix string, limit int) *RateWindow {
	return &RateWindow{prefix: prefix, limit: limit, window: time.Hour}
}

// Allow consumes one slot in the current window. It returns false plus the
// wait until the next window opens when the limit is exhausted.
func (w *RateWindow) Allow(ctx context.Context) (bool, time.Duration, error) {
	if w.limit <= 0 {
		return true, 0, nil
	}

	now := time.Now()
	windowStart := now.Truncate(w.window)
	key := fmt.Sprintf("%s:%d", w.prefix, windowStart.Unix())

	count, err := GetClient().Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// First hit owns the key; expire it shortly after the window ends.
		if err := GetClient().Expire(ctx, key, w.window+time.Minute).Err(); err != nil {
			return false, 0, err
		}
	}

	if count > int64(w.limit) {
		return false, windowStart.Add(w.window).Sub(now), nil
	}
	return true, 0, nil
}

package solana

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"solana-holder-scan/internal/observability"
)

// DefaultMinRequestInterval is the minimum spacing between outbound calls.
const DefaultMinRequestInterval = 300 * time.Millisecond

// Limiter throttles outbound calls.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// MinIntervalLimiter grants acquisitions at least interval apart.
// Each caller reserves its own slot up front, so a cancelled caller gives
// its slot back and returns without waiting on the callers queued before it.
type MinIntervalLimiter struct {
	interval time.Duration
	lim      *rate.Limiter
}

// NewMinIntervalLimiter creates a limiter. A non-positive interval disables throttling.
func NewMinIntervalLimiter(interval time.Duration) *MinIntervalLimiter {
	l := &MinIntervalLimiter{interval: interval}
	if interval > 0 {
		l.lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return l
}

// Acquire blocks until the caller may issue a request or ctx is done.
func (l *MinIntervalLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil || l.lim == nil {
		return nil
	}

	start := time.Now()
	r := l.lim.Reserve()
	if delay := r.Delay(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		case <-timer.C:
		}
	}
	observability.RecordRateLimiterWait(time.Since(start).Seconds())
	return nil
}

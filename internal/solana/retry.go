package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy describes one level of retrying: how many attempts, how long
// to wait between them and which errors deserve another attempt.
// The same policy type drives the per-call, per-wrapper and per-wallet levels.
type RetryPolicy struct {
	Attempts uint
	Backoff  Backoff
	// RetryIf decides whether err deserves another attempt. Cancellation is
	// never retried regardless of what RetryIf returns. Nil retries everything.
	RetryIf func(err error) bool
	// OnRetry is called before sleeping after a failed attempt.
	OnRetry func(attempt uint, err error)
}

// Retry runs op until it succeeds, the policy refuses the error, the attempt
// budget is spent or ctx is done. op receives the 1-based attempt number.
//
// Cancellation is reported as ErrCanceled. Exhaustion returns the last error
// unchanged so callers can decide how to wrap it.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt uint) (T, error)) (T, error) {
	var zero T

	attempts := policy.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var attempt uint
	call := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, retry.Unrecoverable(canceled(err))
		}
		attempt++
		return op(ctx, attempt)
	}

	result, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			b := policy.Backoff
			if errors.Is(err, ErrRateLimited) {
				b = b.amplified()
			}
			return b.Delay(int(attempt))
		}),
		retry.RetryIf(func(err error) bool {
			if !retry.IsRecoverable(err) || IsCanceled(err) {
				return false
			}
			if policy.RetryIf == nil {
				return true
			}
			return policy.RetryIf(err)
		}),
		retry.OnRetry(func(_ uint, err error) {
			// retry-go reports the final failure too; nothing follows it.
			if policy.OnRetry != nil && attempt < attempts {
				policy.OnRetry(attempt, err)
			}
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, canceled(ctxErr)
		}
		if IsCanceled(err) {
			return zero, canceled(err)
		}
		return zero, err
	}
	return result, nil
}

// Exhausted wraps err with ErrRetriesExhausted unless it is a cancellation.
func Exhausted(err error, attempts uint) error {
	if err == nil || IsCanceled(err) || errors.Is(err, ErrRetriesExhausted) {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

// OrDefault returns def when err is non-nil. It is the escape hatch for call
// sites whose failure policy is "use a default value".
func OrDefault[T any](v T, err error, def T) T {
	if err != nil {
		return def
	}
	return v
}

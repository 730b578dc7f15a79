// Package retry runs calls to external services with a bounded retry budget.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 30 * time.Second

// Policy bounds the attempts made for one call.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the backoff before the first retry; it doubles per retry.
	BaseDelay time.Duration

	// AttemptTimeout bounds each attempt. Zero means no per-attempt timeout.
	AttemptTimeout time.Duration
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, the parent
// context ends, or the retry budget is spent. It returns the number of
// attempts made and the last error, unwrapped from any Permanent marker.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, CalculateBackoff(p.BaseDelay, attempt-1)); err != nil {
				return attempt, lastErr
			}
		}

		lastErr = call(ctx, p.AttemptTimeout, fn)
		if lastErr == nil {
			return attempt + 1, nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return attempt + 1, perm.err
		}
		if ctx.Err() != nil {
			return attempt + 1, lastErr
		}
	}
	return p.MaxRetries + 1, lastErr
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CalculateBackoff returns exponential backoff with jitter.
// Base delay is doubled each attempt, with random jitter up to 25%.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if baseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	// Cap attempt to avoid overflow in bit shift
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	spread := int64(backoff) / 2
	if spread <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int64N(spread)) - backoff/4
	return backoff + jitter
}

// Package backoff implements exponential backoff with jitter for retrying
// transient failures (LLM calls, optimistic-concurrency conflicts).
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures retry behavior for transient failures.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultPolicy returns the policy used for LLM requests.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		InitialWait: 1 * time.Second,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// ConflictPolicy returns a short policy suited to retrying lost
// read-modify-write races against the local database.
func ConflictPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		InitialWait: 5 * time.Millisecond,
		MaxWait:     200 * time.Millisecond,
		Multiplier:  2.0,
	}
}

// Wait computes the wait duration before the retry that follows the given
// zero-based attempt. A ±20% jitter is applied.
func (p Policy) Wait(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := float64(p.InitialWait) * math.Pow(mult, float64(attempt))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}

	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are used up. The last error is returned. Context errors
// are never retried.
func Retry(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		if err := Sleep(ctx, p.Wait(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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

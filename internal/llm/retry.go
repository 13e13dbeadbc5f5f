package llm

import (
	"context"
	"errors"

	"github.com/abhisek/mathprogress/internal/backoff"
)

// RetryProvider retries transient failures with exponential backoff.
// An invalid response is retried at most once; a rate limit with a
// RetryAfter waits exactly that long.
type RetryProvider struct {
	inner  Provider
	policy backoff.Policy
}

// WithRetry wraps p with retry logic.
func WithRetry(p Provider, policy backoff.Policy) Provider {
	return &RetryProvider{inner: p, policy: policy}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	attempts := max(r.policy.MaxAttempts, 1)
	invalidSeen := false

	var lastErr error
	for attempt := range attempts {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		var inv *ErrInvalidResponse
		if errors.As(err, &inv) {
			if invalidSeen {
				return nil, err
			}
			invalidSeen = true
		}
		if attempt == attempts-1 {
			break
		}

		wait := retryAfter(err)
		if wait <= 0 {
			wait = r.policy.Wait(attempt)
		}
		if err := backoff.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

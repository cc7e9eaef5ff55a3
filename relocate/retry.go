package relocate

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy describes bounded retry independently of the transport: how
// many attempts, how long to wait between them, and which errors are worth
// another try.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy is three attempts with a fixed one-second backoff.
// Permanent HTTP failures (4xx) and context cancellation aren't retried.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return time.Second },
		Retryable: func(err error) bool {
			return !IsPermanent(err) && !errors.Is(err, context.Canceled)
		},
	}
}

// Do runs op until it succeeds, isn't retryable, or attempts are exhausted.
// The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := time.Duration(0)
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
	return err
}

package application

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// Default retry settings for authority calls.
const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
)

// RetryPolicy retries transient failures with exponential backoff. The delay
// before attempt k+1 is BaseDelay * 2^k, so three attempts wait 1s then 2s.
// Only errors wrapping driven.ErrTransient are retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the 3-attempt, 1s base policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: defaultAttempts, BaseDelay: defaultBaseDelay, Sleep: sleepContext}
}

// Delay returns the wait after the given zero-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError stops retryDo and is returned unwrapped to its caller.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent marks err as final, even if it wraps driven.ErrTransient.
func permanent(err error) error {
	return &permanentError{err: err}
}

// retryDo runs op under policy p and returns the first success or the last error.
func retryDo[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if !errors.Is(err, driven.ErrTransient) || attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

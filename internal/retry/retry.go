// Package retry provides a bounded retry combinator so backoff policy is
// testable independently of the callers' timer plumbing.
package retry

import (
	"context"
	"errors"
	"time"
)

// DelayFunc returns the sleep before the given retry, where attempt counts
// completed failures starting at 1.
type DelayFunc func(attempt int) time.Duration

// Linear returns a linearly growing delay: base, 2*base, 3*base, ...
// Linear rather than exponential backoff bounds worst-case staleness.
func Linear(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps an error so Do stops retrying and returns it as-is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn up to maxAttempts times, sleeping delay(attempt) between
// attempts. It returns nil on the first success, the unwrapped error
// immediately when fn returns a Permanent error, and the last error once
// attempts are exhausted. Context cancellation aborts the wait.
func Do(ctx context.Context, maxAttempts int, delay DelayFunc, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

package services

import (
	"context"
	"strings"
	"time"
)

// RetryPolicy bounds retries for persistence operations. Rate-limit-class
// errors wait RateLimitBackoff between attempts; everything else waits
// Backoff.
type RetryPolicy struct {
	Attempts         int
	Backoff          time.Duration
	RateLimitBackoff time.Duration
}

// PersistencePolicy returns the default policy for store writes: two attempts
// with a short backoff, stretched for rate-limit signatures.
func PersistencePolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:         2,
		Backoff:          250 * time.Millisecond,
		RateLimitBackoff: 2 * time.Second,
	}
}

// WithRetry runs op under the policy and returns the last error once the
// attempts are exhausted. Validation and cancellation failures are never
// retried.
func WithRetry(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) || attempt == attempts {
			return lastErr
		}
		delay := policy.Backoff
		if IsRateLimited(lastErr) {
			delay = policy.RateLimitBackoff
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

// Retryable reports whether an error class may be retried at all.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	details := Details(err)
	switch details.Kind {
	case "validation", "cancelled", "integrity", "configuration":
		return false
	default:
		return true
	}
}

var rateLimitSignatures = []string{
	"rate limit",
	"too many requests",
	"429",
	"quota exceeded",
	"resource exhausted",
	"database is locked",
	"sqlite_busy",
}

// IsRateLimited reports whether the error text carries a rate-limit
// signature. SQLite busy states are treated the same way since they resolve
// with the same longer pause.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, signature := range rateLimitSignatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

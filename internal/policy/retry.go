// Package policy provides composable outbound-call policies: bounded
// exponential-backoff retry and a blocking sliding-window rate limit.
// Vendor clients opt in per operation; nothing here is applied implicitly.
package policy

import (
	"context"
	"time"
)

// RetryOptions configures a Retry policy.
type RetryOptions struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// BaseBackoff seeds the exponential schedule (base, 2x, 4x, ...).
	BaseBackoff time.Duration
	// MaxBackoff caps a single backoff sleep. Zero means uncapped.
	MaxBackoff time.Duration
	// Retryable reports whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// Retry re-runs operations that fail with retryable errors.
type Retry struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration
	retryable   func(error) bool

	sleep func(context.Context, time.Duration) error
}

// NewRetry builds a Retry policy. Defaults: 3 attempts, 500ms base backoff.
func NewRetry(opts RetryOptions) *Retry {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	return &Retry{
		maxAttempts: opts.MaxAttempts,
		base:        opts.BaseBackoff,
		max:         opts.MaxBackoff,
		retryable:   opts.Retryable,
		sleep:       sleepContext,
	}
}

// Do runs op until it succeeds, a non-retryable error occurs, attempts run
// out, or ctx ends. The last error comes back unwrapped so callers can keep
// classifying it.
func (r *Retry) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := r.base * (1 << (attempt - 1))
			if r.max > 0 && backoff > r.max {
				backoff = r.max
			}
			backoff += time.Duration(attempt*50) * time.Millisecond
			if err := r.sleep(ctx, backoff); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if r.retryable != nil && !r.retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
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

// Package retry runs an operation with exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Operation produces a value or fails.
type Operation[T any] func(ctx context.Context) (T, error)

// Sleeper suspends for d. It returns early with an error if ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryHook is called before each backoff sleep. attempt is 1-based.
type RetryHook func(attempt int, delay time.Duration, err error)

type options struct {
	log     *slog.Logger
	sleep   Sleeper
	onRetry RetryHook
}

// Option configures a Do call.
type Option func(*options)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSleeper replaces the timed suspension, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *options) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithRetryHook registers a callback invoked before every retry.
func WithRetryHook(h RetryHook) Option {
	return func(o *options) {
		o.onRetry = h
	}
}

// Do invokes op until it succeeds, fails with an error the policy refuses to
// retry, or the retry budget is spent. op runs at most MaxRetries+1 times.
// The error returned is always the last one op produced.
func Do[T any](ctx context.Context, op Operation[T], policy Policy, opts ...Option) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	cfg := options{
		log:   slog.Default(),
		sleep: sleepWithContext,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	shouldRetry := policy.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}

	for attempt := 0; ; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}

		if attempt == policy.MaxRetries || !shouldRetry(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		cfg.log.Warn("Attempt failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if cfg.onRetry != nil {
			cfg.onRetry(attempt+1, delay, err)
		}

		if sleepErr := cfg.sleep(ctx, delay); sleepErr != nil {
			// Keep the real cause visible to errors.As callers.
			return zero, errors.Join(err, sleepErr)
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

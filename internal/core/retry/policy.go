package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPolicy is returned when policy numbers are out of range.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy defines retry behavior for a single Do call.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. 0 means one attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay: BaseDelay * Multiplier^attempt.
	Multiplier float64
	// ShouldRetry decides whether a failure may be retried. nil retries everything.
	ShouldRetry func(error) bool
}

// DefaultPolicy returns the defaults used when nothing overrides them.
// Delays: 5s, 15s, 45s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  5 * time.Second,
		Multiplier: 3,
	}
}

// Validate checks the numeric fields.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidPolicy, p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay must be >= 0, got %s", ErrInvalidPolicy, p.BaseDelay)
	}
	if math.IsNaN(p.Multiplier) || math.IsInf(p.Multiplier, 0) || p.Multiplier < 1 {
		return fmt.Errorf("%w: multiplier must be finite and >= 1, got %v", ErrInvalidPolicy, p.Multiplier)
	}
	return nil
}

// Delay returns the wait after the given failed attempt (0-indexed):
// BaseDelay * Multiplier^attempt. There is no jitter and no cap other than
// the range of time.Duration.
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Schedule returns every delay the policy can produce, in order.
func (p Policy) Schedule() []time.Duration {
	if p.MaxRetries <= 0 {
		return nil
	}
	delays := make([]time.Duration, p.MaxRetries)
	for i := range delays {
		delays[i] = p.Delay(i)
	}
	return delays
}

// Package retry wraps fallible backend calls with bounded exponential
// backoff. Failures carrying an HTTP status are retried only when the status
// is classified retryable; failures with no status (network errors) are
// treated as transient.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Config tunes the executor.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// RetryableStatuses classifies HTTP-like failure statuses; nil means the
	// default set.
	RetryableStatuses map[int]bool
}

// DefaultConfig mirrors the retry behavior the streaming clients expect.
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  1 * time.Second,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
}

// maxJitter is the upper bound of the uniform random delay added to each
// backoff sleep to avoid synchronized retries.
const maxJitter = 200 * time.Millisecond

func defaultRetryable() map[int]bool {
	return map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}
}

// StatusCoder is implemented by errors that carry an HTTP-like status.
type StatusCoder interface {
	error
	StatusCode() int
}

// Attempt describes the state of one retried operation; it is passed to the
// observer before each retry sleep.
type Attempt struct {
	Attempt     int
	MaxAttempts int
	LastErr     error
}

// Observer is notified before each retry.
type Observer func(Attempt)

// normalize fills zero fields from DefaultConfig.
func (c Config) normalize() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultConfig.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultConfig.MaxDelay
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = DefaultConfig.BackoffFactor
	}
	if c.RetryableStatuses == nil {
		c.RetryableStatuses = defaultRetryable()
	}
	return c
}

// Do runs op up to cfg.MaxAttempts times, sleeping an exponentially growing
// delay between attempts. onRetry (optional) is invoked once per retry,
// before the sleep. The last error is returned when attempts are exhausted;
// non-retryable failures propagate immediately.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error), onRetry Observer) (T, error) {
	cfg = cfg.normalize()
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !cfg.shouldRetry(err) || attempt == cfg.MaxAttempts {
			return zero, lastErr
		}

		if onRetry != nil {
			onRetry(Attempt{Attempt: attempt, MaxAttempts: cfg.MaxAttempts, LastErr: err})
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}
	return zero, lastErr
}

// delay computes the backoff before attempt n+1 given n completed attempts.
func (c Config) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1)))
	if d > c.MaxDelay || d <= 0 {
		d = c.MaxDelay
	}
	return d + rand.N(maxJitter)
}

// shouldRetry classifies an error. Context cancellation is never retried; a
// carried HTTP status is checked against the retryable set; anything else is
// treated as a transient transport failure.
func (c Config) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return c.RetryableStatuses[sc.StatusCode()]
	}
	return true
}

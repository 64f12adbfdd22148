// Package retry provides bounded retry with exponential backoff and jitter.
// It wraps persistence calls so transient storage failures are retried a
// fixed number of times while NotFound and validation failures surface
// immediately.
// No external dependencies - uses only standard library.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryableError indicates that an error is retryable.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as worth another attempt. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries a RetryableError anywhere in
// its chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PermanentError marks an error the retrier must give up on immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not retryable. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including first attempt).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the initial delay before first retry.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier applied per attempt.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes delays to avoid thundering herds (0.0 to 1.0).
	JitterFactor float64

	// RetryIf overrides the default retryability check.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt.
	// Useful for logging or metrics.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the engine-wide persistence retry policy:
// 3 attempts, exponential backoff starting at 1 second, capped at 30 seconds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		RetryIf:      nil,
		OnRetry:      nil,
	}
}

// Option adjusts a Config. Out-of-range values are ignored rather than
// clamped, so a bad option leaves the default in place.
type Option func(*Config)

// WithMaxAttempts sets the total attempt budget, first try included.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithMultiplier sets the per-attempt backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1.0 {
			c.Multiplier = m
		}
	}
}

// WithJitter sets the jitter factor, 0.0 to 1.0.
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf replaces the wrapper-based retryability check.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry installs a callback invoked before each backoff sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier executes operations under one retry policy.
type Retrier struct {
	config Config
}

// New builds a Retrier from DefaultConfig plus the given options.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do runs the operation until it succeeds, turns permanent, exhausts the
// attempt budget, or the context ends. Wrapper errors are stripped on the
// way out so callers classify the underlying storage error, not the
// retry machinery.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if lastErr == nil {
				return ctxErr
			}
			return lastErr
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		var permanent *PermanentError
		if errors.As(lastErr, &permanent) {
			return permanent.Err
		}

		wantRetry := IsRetryable(lastErr)
		if r.config.RetryIf != nil {
			wantRetry = r.config.RetryIf(lastErr)
		}
		if !wantRetry {
			return lastErr
		}

		if attempt >= r.config.MaxAttempts {
			return stripRetryable(lastErr)
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}

// stripRetryable removes the retryable wrapper after the budget is spent.
func stripRetryable(err error) error {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable.Err
	}
	return err
}

// calculateDelay grows the delay geometrically per attempt, clamps it at
// MaxDelay and spreads it by the jitter factor in both directions.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay)
	ceiling := float64(r.config.MaxDelay)

	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= r.config.Multiplier
	}
	if delay > ceiling {
		delay = ceiling
	}

	if j := r.config.JitterFactor; j > 0 {
		delay += delay * j * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// Do is a convenience function that creates a Retrier and executes the operation.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

// DoWithData is a helper for operations that return data.
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}

// PersistenceRetrier returns a Retrier configured for progress-store writes.
// Every operation wrapped by it must be idempotent or existence-guarded.
func PersistenceRetrier() *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(1*time.Second),
		WithMaxDelay(30*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.1),
	)
}

// ReadRetrier returns a Retrier for read paths. Reads degrade gracefully,
// so the delays are short.
func ReadRetrier() *Retrier {
	return New(
		WithMaxAttempts(2),
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(1*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.05),
	)
}

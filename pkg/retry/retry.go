// Package retry runs operations with bounded, jittered exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts including the first one.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is the delay before the second attempt.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the exponential growth.
	DefaultMaxDelay = 30 * time.Second

	// DefaultJitter spreads each delay by ±20%.
	DefaultJitter = 0.2
)

// Condition decides whether an error should be retried.
type Condition func(err error) bool

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	// Values below 1 are treated as 1.
	MaxAttempts int

	// RetryIf determines whether to retry based on the error.
	// If nil, every error is retried.
	RetryIf Condition

	// BaseDelay is the initial delay; it doubles after each failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration

	// Jitter is the relative spread applied to each delay, e.g. 0.2 for ±20%.
	Jitter float64

	// Logger for retry attempts. If nil, no logging is performed.
	Logger *slog.Logger
}

// DefaultConfig returns the controller's standard backoff: base 1s, cap 30s,
// jitter ±20%, five attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

// Do executes fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is cancelled during a backoff wait.
//
// fn receives the 1-indexed attempt number. Do returns the number of attempts
// made together with the last result.
//
// Example:
//
//	cfg := retry.DefaultConfig()
//	cfg.RetryIf = cluster.IsRetryable
//	state, attempts, err := retry.Do(ctx, cfg, func(attempt int) (resource.State, error) {
//	    return target.Create(ctx, spec)
//	})
func Do[T any](ctx context.Context, config Config, fn func(attempt int) (T, error)) (T, int, error) {
	var zero T

	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, attempt, nil
		}

		shouldRetry := config.RetryIf == nil || config.RetryIf(err)
		if !shouldRetry || attempt >= config.MaxAttempts {
			return zero, attempt, err
		}

		delay := Backoff(config, attempt)

		if config.Logger != nil {
			config.Logger.Warn("Operation failed, retrying",
				"attempt", attempt,
				"max_attempts", config.MaxAttempts,
				"delay", delay,
				"error", err.Error())
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, attempt, fmt.Errorf("retry cancelled during backoff: %w (last error: %v)", ctx.Err(), err)
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return zero, attempt, fmt.Errorf("retry cancelled: %w (last error: %v)", ctx.Err(), err)
		}
	}
}

// Backoff returns the delay after the given failed attempt (1-indexed):
// BaseDelay * 2^(attempt-1), capped at MaxDelay, then spread by Jitter.
func Backoff(config Config, attempt int) time.Duration {
	if config.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if config.MaxDelay > 0 && delay >= config.MaxDelay {
			delay = config.MaxDelay
			break
		}
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.Jitter > 0 {
		// Uniform in [1-jitter, 1+jitter].
		factor := 1 + config.Jitter*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * factor)
	}

	return delay
}

package resilience

import (
	"context"
	"time"
)

type RetryConfig struct {
	MaxAttempts       uint
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

type RetryHook interface {
	OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration)
	OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration)
	OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration)
}

// PermanentError wraps an error that must not be retried, e.g. a push token
// the provider has declared invalid.
type PermanentError struct {
	Err error
}

func Permanent(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Retry runs fn until it succeeds, returns a PermanentError, the attempt
// budget is exhausted, or ctx is canceled. The last error is returned.
func Retry(ctx context.Context, config *RetryConfig, hook RetryHook, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	start := time.Now()
	delay := config.InitialDelay

	var lastErr error
	for attempt := uint(1); attempt <= config.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if hook != nil {
				hook.OnRetrySuccess(ctx, attempt, time.Since(start))
			}
			return nil
		}

		if perm, ok := lastErr.(*PermanentError); ok {
			if hook != nil {
				hook.OnRetryFailure(ctx, perm.Err, attempt, time.Since(start))
			}
			return perm.Err
		}

		if attempt == config.MaxAttempts {
			break
		}

		if hook != nil {
			hook.OnRetryAttempt(ctx, attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.BackoffMultiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	if hook != nil {
		hook.OnRetryFailure(ctx, lastErr, config.MaxAttempts, time.Since(start))
	}
	return lastErr
}

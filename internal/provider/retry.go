package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries      int           // retry attempts after the first call
	InitialInterval time.Duration // first backoff interval
	MaxInterval     time.Duration // backoff ceiling
}

// DefaultRetryConfig returns sensible defaults for model provider APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// withRetry runs fn with bounded exponential backoff. Only transient
// errors (see Classify) are retried; anything else surfaces immediately.
// Each attempt gets its own deadline when timeout > 0, so a hung call
// cannot absorb the whole retry budget.
func withRetry(ctx context.Context, cfg RetryConfig, timeout time.Duration, logger *slog.Logger, op string, fn func(context.Context) error) error {
	var lastErr error
	delay := cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		err := Classify(fn(attemptCtx))
		cancel()
		if err == nil {
			if attempt > 0 {
				logger.Debug("provider call recovered",
					"op", op,
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return nil
		}
		lastErr = err

		// A dead parent context means the turn is over; a non-transient
		// error means retrying cannot help.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, errors.Join(ctxErr, err))
		}
		if !Retryable(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if attempt == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying provider call",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: canceled during retry: %w", op, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return fmt.Errorf("%s after %d retries (elapsed %v): %w",
		op, cfg.MaxRetries, time.Since(start), lastErr)
}

// errEmptyResponse is returned when a provider answers without content.
var errEmptyResponse = errors.New("empty provider response")

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitter-ai/outfitter/internal/log"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error // sentinel expected via errors.Is, nil = unchanged
	}{
		{name: "nil", err: nil, want: nil},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
		{name: "rate limit", err: errors.New("googleai: rate limit exceeded"), want: ErrUnavailable},
		{name: "http 503", err: errors.New("rpc error: code 503 service down"), want: ErrUnavailable},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: ErrUnavailable},
		{name: "already classified", err: ErrTimeout, want: ErrTimeout},
		{name: "permanent", err: errors.New("invalid api key"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			if tt.want == nil {
				assert.Equal(t, tt.err, got, "permanent errors pass through unchanged")
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(errors.New("invalid api key")))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.True(t, Retryable(errors.New("quota exceeded for model")))
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetry(3), 0, log.NewNop(), "embed", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorFailsImmediately(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid request payload")

	err := withRetry(context.Background(), fastRetry(5), 0, log.NewNop(), "complete", func(context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetry(2), 0, log.NewNop(), "embed", func(context.Context) error {
		calls++
		return errors.New("timeout talking to backend")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls, "one initial attempt plus two retries")
}

func TestWithRetry_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := withRetry(ctx, RetryConfig{
		MaxRetries:      5,
		InitialInterval: time.Hour, // never elapses; cancellation must win
		MaxInterval:     time.Hour,
	}, 0, log.NewNop(), "embed", func(context.Context) error {
		calls++
		cancel()
		return errors.New("temporary network glitch")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_PerAttemptTimeout(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetry(1), 10*time.Millisecond, log.NewNop(), "embed", func(ctx context.Context) error {
		calls++
		<-ctx.Done() // simulate a hung call that honors its deadline
		return ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 2, calls, "each attempt gets a fresh deadline")
}

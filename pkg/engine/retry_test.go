package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tgcloud/pkg/telegram"
)

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	v, err := withRetry(context.Background(), "test", nil, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestWithRetryTerminalErrorDoesNotRetry(t *testing.T) {
	shortRetries(t)

	terminal := &telegram.APIError{Op: "sendDocument", Message: "chat not found"}
	calls := 0
	_, err := withRetry(context.Background(), "test", nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, terminal
	})
	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)

	var exhausted *RetryExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	shortRetries(t)

	calls := 0
	v, err := withRetry(context.Background(), "test", nil, func(ctx context.Context) (string, error) {
		calls++
		if calls < 4 {
			return "", &telegram.StatusError{Code: 429, Body: "Too Many Requests"}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 4, calls)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	shortRetries(t)

	calls := 0
	_, err := withRetry(context.Background(), "test", nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, &telegram.StatusError{Code: 503, Body: "Service Unavailable"}
	})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, maxAttempts, exhausted.Attempts)

	var status *telegram.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, 503, status.Code)
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := withRetry(ctx, "test", nil, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &telegram.StatusError{Code: 429, Body: "Too Many Requests"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

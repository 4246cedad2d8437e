package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/metrics"
	"github.com/marmos91/tgcloud/pkg/telegram"
)

// Retry policy for individual blob-tier calls: 5 attempts, exponential
// backoff from 1s with x2 growth and 25% jitter. Retries absorb rate
// limiting (429), server errors (5xx), and network failures; everything
// else aborts immediately.
const maxAttempts = 5

var (
	baseRetryDelay   = time.Second
	maxRetryInterval = 30 * time.Second
)

func newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = baseRetryDelay
	bo.RandomizationFactor = 0.25
	bo.Multiplier = 2
	bo.MaxInterval = maxRetryInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)
}

// withRetry runs fn under the retry policy. fn is a factory for a complete
// fresh attempt, not a resumable one: an upload attempt re-opens and
// re-seeks its source, a download attempt re-resolves its URL. Consumed
// streams and expired URLs cannot be rewound.
func withRetry[T any](ctx context.Context, op string, m *metrics.Metrics, fn func(context.Context) (T, error)) (T, error) {
	var (
		out      T
		last     error
		attempts int
	)

	err := backoff.Retry(func() error {
		attempts++
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		last = err
		if !telegram.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		m.IncRetry(op)
		logger.Warn("transient failure, retrying",
			"op", op, "attempt", attempts, "max_attempts", maxAttempts, "error", err)
		return err
	}, newBackOff(ctx))

	if err == nil {
		return out, nil
	}
	if attempts >= maxAttempts && telegram.IsRetryable(last) {
		return out, &RetryExhaustedError{Attempts: attempts, Last: last}
	}
	return out, err
}

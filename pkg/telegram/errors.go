package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// StatusError reports a non-success HTTP status from the Bot API.
// 429 and 5xx are transient; everything else is terminal.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Code == http.StatusTooManyRequests {
		return "rate limited (HTTP 429)"
	}
	if e.Body != "" {
		return fmt.Sprintf("telegram API error (HTTP %d): %s", e.Code, e.Body)
	}
	return fmt.Sprintf("telegram API error (HTTP %d)", e.Code)
}

// Retryable reports whether the status class is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// APIError reports a 2xx response whose body carries ok=false or is missing
// an expected field. These are terminal: retrying the same request would
// yield the same answer.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %s", e.Op, e.Message)
}

// IsRetryable classifies an error from this package (or from the transport
// underneath it) as transient or terminal. Transient means: rate limiting,
// server-side failure, or a network-level error. Context cancellation is
// never transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShutdown means a gate was shut while a worker was waiting on it. This
// only happens when the engine's context dies under a running transfer; it
// is not retryable.
var ErrShutdown = errors.New("admission gate shut down")

// RetryExhaustedError is returned once a chunk operation has spent its full
// retry budget on transient failures.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// IntegrityError means the reassembled download did not hash to the stored
// digest. The stored digest is authoritative, so this is terminal and the
// output file has already been deleted when the error surfaces.
type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("sha256 mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// DeleteError reports a partially failed blob-tier delete. Metadata is left
// in place so the user can retry; the file stays visible but some chunks
// may already be gone.
type DeleteError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *DeleteError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("partial delete failure (%d/%d chunks failed): %s",
		e.Failed, e.Total, strings.Join(msgs, "; "))
}

package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors classified at this boundary. Layers above decide how each
// maps to a caller-visible failure; nothing here carries upstream internals
// beyond a bounded body excerpt for logs.
var (
	// ErrTimeout marks an upstream call that exceeded its deadline.
	ErrTimeout = errors.New("upstream timeout")

	// ErrNotFound marks a canonical id the provider has no data for.
	ErrNotFound = errors.New("asset not found upstream")

	// ErrRateLimited marks an HTTP 429 from the provider.
	ErrRateLimited = errors.New("rate limited by upstream")
)

// HTTPError is a non-2xx upstream response that is not a 404 or 429.
type HTTPError struct {
	StatusCode int
	Body       string // bounded excerpt, for logs only
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream HTTP %d", e.StatusCode)
}

// Retriable reports whether the failure is a server-side error worth one
// bounded retry. Client errors (4xx) are never retried.
func (e *HTTPError) Retriable() bool {
	return e.StatusCode >= 500
}

// classifyTransport wraps transport-level failures, distinguishing timeouts
// from other connectivity problems.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("upstream request: %w", err)
}

// retriable reports whether err is a timeout or retriable HTTP failure.
func retriable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Retriable()
}

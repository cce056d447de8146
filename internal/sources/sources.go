// Package sources contains the external data provider adapters. Each
// adapter normalizes its provider's payload shape into a canonical
// domain.Snapshot and owns a bounded request timeout. Transport, parse and
// upstream-error conditions never escape an adapter: they collapse to
// ErrNotFound or ErrUnavailable, logged but not propagated as raw errors.
package sources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"agent-trust-lab/internal/domain"
)

var (
	// ErrNotFound means the provider answered and does not know the identity.
	ErrNotFound = errors.New("identity not found at source")

	// ErrUnavailable means the provider could not be consulted (timeout,
	// network failure, malformed payload, upstream 5xx). Retryable via the
	// orchestrator's fallback chain.
	ErrUnavailable = errors.New("source unavailable")
)

// Adapter is the uniform contract all source adapters implement.
type Adapter interface {
	// Name identifies the adapter in logs and metrics.
	Name() string

	// Fetch retrieves and normalizes a snapshot for an exact identifier.
	Fetch(ctx context.Context, id string) (*domain.Snapshot, error)

	// Search resolves a free-text query to a canonical identifier and
	// fetches it. Adapters without search semantics return ErrNotFound.
	Search(ctx context.Context, query string) (*domain.Snapshot, error)
}

// defaultTimeout bounds every adapter HTTP call. Single-digit seconds so a
// slow upstream fails closed instead of stalling callers.
const defaultTimeout = 8 * time.Second

// newHTTPClient returns an adapter HTTP client with the bounded timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// drainClose fully consumes and closes a response body so connections are
// reused.
func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// Pointer constructors for the optional Snapshot fields.
func int64p(v int64) *int64        { return &v }
func f64p(v float64) *float64      { return &v }
func boolp(v bool) *bool           { return &v }
func timep(v time.Time) *time.Time { return &v }

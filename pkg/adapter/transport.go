package adapter

import (
	"context"
	"fmt"
)

// Dialect names one of the two REST styles the adapter targets.
type Dialect string

const (
	DialectClassic Dialect = "classic"
	DialectModern  Dialect = "modern"
)

// Transport performs one dialect-specific call. The concrete device-
// management REST surface is out of scope for this core (spec.md §1); a
// Transport is whatever implements this against that surface — a real HTTP
// client in production, StubAPI's in-memory fakes in tests and the demo.
type Transport interface {
	Invoke(ctx context.Context, method string, args []any, authHeader string) (any, error)
}

// StatusError carries enough context for the fallback pipeline to decide
// retry vs fallback vs terminal, and for a combined failure to report both
// dialects' contexts.
type StatusError struct {
	Dialect Dialect
	Status  int // HTTP-shaped status the stub/transport reports
	Err     error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s dialect: status %d: %v", e.Dialect, e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) retriable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

func (e *StatusError) fallbackEligible() bool {
	return e.Status == 401 || e.Status == 403 || e.Status == 404
}

func (e *StatusError) unauthorized() bool {
	return e.Status == 401
}

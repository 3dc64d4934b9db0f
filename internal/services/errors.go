package services

import "fmt"

// Typed service errors. Handlers map these to HTTP status codes in one
// place; anything else becomes a 500.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// CredentialRefreshError means the calendar provider rejected a stored
// refresh token (revoked or expired grant). It is always caught at the
// orchestrator boundary and degraded to a per-participant error; it never
// fails a session or request operation.
type CredentialRefreshError struct {
	Err error
}

func (e *CredentialRefreshError) Error() string {
	return fmt.Sprintf("credential refresh failed: %v", e.Err)
}

func (e *CredentialRefreshError) Unwrap() error { return e.Err }

// ProviderError wraps any failure from the calendar provider's event API.
// Same treatment as CredentialRefreshError: isolated, logged, never fatal.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Package apierr provides shared error sentinels, classification, and retry
// infrastructure for the rewriting-service client. Provider-specific error
// types are mapped into these sentinels at the client boundary.
//
// Clients wrap with fmt.Errorf("%s: %w", msg, sentinel) and callers check
// with errors.Is(err, apierr.ErrRateLimit) etc.
package apierr

import "errors"

// Sentinel errors for rewriting-service interaction failures.
var (
	// ErrRateLimit indicates the service rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the service quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates service authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")
)

// Package outcome holds the failure taxonomy for calls to external
// collaborators (the clinical-records API and the reasoning service).
// Expected failures are returned as typed errors so that callers can branch
// on them with errors.As/errors.Is instead of parsing messages.
package outcome

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the external system rejected the presented
// credential (HTTP 401).
var ErrUnauthorized = errors.New("external system rejected the credential")

// NotFoundError indicates the requested resource does not exist (HTTP 404).
type NotFoundError struct {
	ResourceType string
	ID           string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.ResourceType)
	}
	return fmt.Sprintf("%s/%s not found", e.ResourceType, e.ID)
}

// ValidationError indicates the external system rejected or returned a
// malformed payload. A response body that fails to deserialize is a
// validation failure, not a crash.
type ValidationError struct {
	Detail string
	Cause  error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NetworkError indicates a transport-level failure (connect, timeout) or a
// server-side failure (5xx). Timeouts are not distinguished from other
// transport failures.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return "external call failed: " + e.Cause.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err should surface to API clients as a
// generic "external service unavailable" response.
func IsUnavailable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

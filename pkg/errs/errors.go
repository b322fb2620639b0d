// Package errs defines the closed set of error kinds produced by the
// request admission pipeline and its handlers. Every stage classifies
// failures into one of these kinds; the HTTP layer maps the kind to a
// status code and response envelope in exactly one place.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the class of a pipeline error.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindFileUpload     Kind = "file_upload"
	KindRateLimit      Kind = "rate_limit"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

// StatusCode returns the HTTP status associated with the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindFileUpload:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error type that crosses stage boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input field for validation failures,
	// as a dotted path (e.g. "body.username").
	Field string
	// RetryAfter is the unix-seconds reset hint for rate limit errors.
	RetryAfter int64
	// Err is the wrapped cause, never surfaced to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a 400 validation error naming the offending field.
func Validation(message, field string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// Authentication creates a 401 error.
func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// Authorization creates a 403 error.
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// FileUpload creates a 400 upload rejection.
func FileUpload(message string) *Error {
	return &Error{Kind: KindFileUpload, Message: message}
}

// RateLimit creates a 429 error with a reset hint.
func RateLimit(message string, retryAfter int64) *Error {
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter}
}

// NotFound creates a 404 error for a named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Internal wraps an unexpected failure. The cause is logged, never
// returned to the client.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// From classifies an arbitrary error. Pipeline errors pass through;
// anything else becomes an internal error.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

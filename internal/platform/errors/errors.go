// Package errors is the API's error vocabulary: typed errors that know their
// HTTP status, carry a cause for logs, and render a stable JSON body.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType is the "type" field of an error body. Clients switch on it.
type ErrorType string

const (
	TypeValidation   ErrorType = "validation"
	TypeUnauthorized ErrorType = "unauthorized"
	TypeNotFound     ErrorType = "not_found"
	TypeConflict     ErrorType = "conflict"
	TypeRateLimited  ErrorType = "rate_limited"
	TypeUnavailable  ErrorType = "unavailable"
	TypeInternal     ErrorType = "internal"
	TypeExternal     ErrorType = "external"
)

var statusByType = map[ErrorType]int{
	TypeValidation:   http.StatusBadRequest,
	TypeUnauthorized: http.StatusUnauthorized,
	TypeNotFound:     http.StatusNotFound,
	TypeConflict:     http.StatusConflict,
	TypeRateLimited:  http.StatusTooManyRequests,
	TypeUnavailable:  http.StatusServiceUnavailable,
	TypeInternal:     http.StatusInternalServerError,
	TypeExternal:     http.StatusBadGateway,
}

// TypeForStatus classifies a bare HTTP status, as produced by echo's router,
// binder and middleware.
func TypeForStatus(code int) ErrorType {
	switch code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return TypeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return TypeUnauthorized
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return TypeNotFound
	case http.StatusConflict:
		return TypeConflict
	case http.StatusTooManyRequests:
		return TypeRateLimited
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return TypeUnavailable
	case http.StatusBadGateway:
		return TypeExternal
	default:
		return TypeInternal
	}
}

type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any

	// RetryAfter is sent as a Retry-After header when non-zero.
	RetryAfter time.Duration
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the type to a status code; unknown types are 500.
func (e *Error) HTTPStatus() int {
	if code, ok := statusByType[e.Type]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func UnauthorizedError(message string) *Error {
	return newError(TypeUnauthorized, message, nil)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

func ConflictError(message string) *Error {
	return newError(TypeConflict, message, nil)
}

// RateLimitedError is a 429 telling the client when to come back.
func RateLimitedError(retryAfter time.Duration) *Error {
	e := newError(TypeRateLimited, "rate limit exceeded", nil)
	e.RetryAfter = retryAfter
	return e
}

// UnavailableError is a 503 for a dependency that is down, with a retry hint.
func UnavailableError(message string, cause error, retryAfter time.Duration) *Error {
	e := newError(TypeUnavailable, message, cause)
	e.RetryAfter = retryAfter
	return e
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithField adds a context field rendered in the response body (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse renders the client-facing body. The cause is never included.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError returns the *Error in err's chain, or wraps err as an
// internal error. It returns nil for nil.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}
	if structured, ok := errors.AsType[*Error](err); ok {
		return structured
	}
	return InternalError("internal server error", err)
}

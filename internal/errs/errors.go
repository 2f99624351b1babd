// Package errs provides the structured error types used across the
// dispatcher, codec, and transcluding reader. Every error that should
// become an HTTP response implements HTTPError so the dispatcher has
// exactly one place that maps a Go error to a status code and body.
package errs

import (
	"errors"
	"time"
)

// =============================================================================
// CORE INTERFACES
// =============================================================================

// ContextualError represents an error that can carry additional context.
type ContextualError interface {
	error
	WithContext(key string, value any) ContextualError
	GetContext() map[string]any
}

// CodedError represents an error with a structured error code.
type CodedError interface {
	error
	GetCode() string
}

// HTTPError is an interface for errors that can be represented as HTTP
// responses. Any error implementing this interface can be converted to a
// response by the dispatcher's single translation point.
type HTTPError interface {
	error
	StatusCode() int
	ResponseBody() []byte
}

// CausedError represents an error that wraps an underlying cause.
type CausedError interface {
	error
	Unwrap() error
	Cause() error
}

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	CodeInternal    = "INTERNAL_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "UNAVAILABLE"
	CodeValidation  = "VALIDATION_ERROR"
)

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Error represents a structured error with context.
type Error struct {
	Code      string
	Message   string
	Err       error
	Timestamp time.Time
	Ctx       map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compares by error code, allowing matching against sentinel errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code != "" && e.Code == t.Code
}

// WithContext adds context to the error and returns it for chaining.
func (e *Error) WithContext(key string, value any) ContextualError {
	if e.Ctx == nil {
		e.Ctx = make(map[string]any)
	}

	e.Ctx[key] = value

	return e
}

// GetContext returns the error's context map.
func (e *Error) GetContext() map[string]any {
	return e.Ctx
}

// GetCode returns the error's code.
func (e *Error) GetCode() string {
	return e.Code
}

// Cause returns the underlying error (same as Unwrap).
func (e *Error) Cause() error {
	return e.Err
}

// StatusCode maps the structured code to the small set of statuses this
// server ever emits: 404, 500, 503. Anything else falls back to 500.
func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return 404
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

// ResponseBody returns the fixed HTML document for the error's status
// code (see Pages in pages.go). The structured context (Ctx) is never
// rendered to the client, only to logs, matching the original's "diagnostic
// output goes to stderr, clients get a fixed document" rule.
func (e *Error) ResponseBody() []byte {
	return PageFor(e.StatusCode())
}

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// New creates a new structured error with the given code, message, and
// optional cause.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Err:       cause,
		Timestamp: time.Now(),
		Ctx:       make(map[string]any),
	}
}

// NotFound creates a 404 error for a resolved path that does not exist.
func NotFound(resolvedPath string) *Error {
	return New(CodeNotFound, "resolved path does not exist", nil).
		WithContext("path", resolvedPath).(*Error)
}

// Internal creates a 500 error, typically from a filesystem or spawn
// failure below the HTTP layer.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, message, cause)
}

// Unavailable creates a 503 error for the admission-control rejection.
func Unavailable(resolvedPath string, accessors int) *Error {
	return New(CodeUnavailable, "too many concurrent accessors", nil).
		WithContext("path", resolvedPath).
		WithContext("accessors", accessors).(*Error)
}

// ErrValidation creates a validation error (used for config/allowed_variables
// loading, never sent to an HTTP client).
func ErrValidation(message string, cause error) *Error {
	return New(CodeValidation, message, cause)
}

// =============================================================================
// STANDARD ERRORS PACKAGE INTEGRATION
// =============================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling Unwrap on err, if any.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	ErrNotFoundSentinel    = &Error{Code: CodeNotFound}
	ErrUnavailableSentinel = &Error{Code: CodeUnavailable}
	ErrInternalSentinel    = &Error{Code: CodeInternal}
	ErrValidationSentinel  = &Error{Code: CodeValidation}
)

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFoundSentinel)
}

// IsUnavailable checks if the error is an over-admission error.
func IsUnavailable(err error) bool {
	return Is(err, ErrUnavailableSentinel)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return Is(err, ErrValidationSentinel)
}

// GetHTTPStatusCode extracts the HTTP status code from err, defaulting to
// 500 if err does not implement HTTPError.
func GetHTTPStatusCode(err error) int {
	var httpErr HTTPError
	if As(err, &httpErr) {
		return httpErr.StatusCode()
	}

	return 500
}

// GetResponseBody extracts the fixed HTML body for err, falling back to
// the 500 page.
func GetResponseBody(err error) []byte {
	var httpErr HTTPError
	if As(err, &httpErr) {
		return httpErr.ResponseBody()
	}

	return PageFor(500)
}

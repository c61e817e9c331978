package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes shared by the verification and cleanup packages
const (
	// Generic errors
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Verification lifecycle errors
	ErrCodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	ErrCodeAttemptsExceeded  ErrorCode = "ATTEMPTS_EXCEEDED"
	ErrCodeAlreadyVerified   ErrorCode = "ALREADY_VERIFIED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code and message.
// Sentinels declared with New therefore match copies that carry details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithDetail returns a copy of the error with the detail added.
// The receiver is never mutated so package-level sentinels stay clean.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	return e.WithDetails(map[string]interface{}{key: value})
}

// WithDetails returns a copy of the error with the details merged in
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error
// Returns nil if the error is not a structured Error
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// GetMessage returns the structured message, or a generic one for foreign errors
func GetMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes.
// Unknown codes are treated as internal.
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeAlreadyVerified, ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodeTokenExpired:
		return http.StatusGone
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimitExceeded, ErrCodeAttemptsExceeded:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// Unauthorized creates an "unauthorized" error
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message)
}

// Forbidden creates a "forbidden" error
func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// ValidationFailed creates a "validation failed" error
func ValidationFailed(details map[string]interface{}) *Error {
	return New(ErrCodeValidationFailed, "validation failed").WithDetails(details)
}

// RateLimitExceeded creates a "rate limit exceeded" error
func RateLimitExceeded(retryAfter string) *Error {
	err := New(ErrCodeRateLimitExceeded, "rate limit exceeded")
	if retryAfter != "" {
		return err.WithDetail("retry_after", retryAfter)
	}
	return err
}

// Package errors provides structured error handling with error codes for the
// verification subsystem.
//
// Every service returns *Error values (or wraps them), so HTTP handlers can map
// a failure to a status code without knowing which package produced it.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-verification/pkg/errors"
//
//	// Package-level sentinels
//	var ErrNotFound = errors.New(errors.ErrCodeNotFound, "verification record not found")
//
//	// Wrap a datastore failure
//	err := errors.InternalWrap(dbErr, "failed to load verification record")
//
//	// Attach details without mutating the sentinel
//	err := ErrValidationFailed.WithDetail("missing_fields", []string{"dni"})
//
// # Inspection
//
//	if errors.IsCode(err, errors.ErrCodeTokenExpired) {
//		// ...
//	}
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// # Error Codes
//
// Lifecycle:
//   - ErrCodeNotFound: token, record or identity absent
//   - ErrCodeTokenExpired: past expiry or attempts exhausted
//   - ErrCodeAttemptsExceeded: attempt limit reached
//   - ErrCodeAlreadyVerified: identity or email already verified
//   - ErrCodeConflict: duplicate DNI or record already terminal
//   - ErrCodeInvalidTransition: illegal state machine transition
//
// Validation:
//   - ErrCodeValidationFailed: incomplete identity or bad input fields
//   - ErrCodeInvalidInput: malformed body or query parameter
//
// Generic:
//   - ErrCodeInternal, ErrCodeUnauthorized, ErrCodeForbidden,
//     ErrCodeRateLimitExceeded
package errors

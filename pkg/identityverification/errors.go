package identityverification

import (
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
)

var (
	// ErrNotFound is returned when no verification record exists for the email or id
	ErrNotFound = apperrors.New(apperrors.ErrCodeNotFound, "identity verification not found")

	// ErrIdentityNotFound is returned when the email has no identity
	ErrIdentityNotFound = apperrors.New(apperrors.ErrCodeNotFound, "identity not found")

	// ErrExpired is returned for a record past expiry or already expired
	ErrExpired = expiringtoken.ErrExpired

	// ErrAttemptsExceeded is returned once every allowed attempt has been used
	ErrAttemptsExceeded = apperrors.New(apperrors.ErrCodeAttemptsExceeded, "maximum verification attempts exceeded")

	// ErrAlreadyVerified is returned when the identity is already admin-verified
	ErrAlreadyVerified = apperrors.New(apperrors.ErrCodeAlreadyVerified, "identity already verified")

	// ErrDNIConflict is returned when another identity holds the same DNI
	ErrDNIConflict = apperrors.New(apperrors.ErrCodeConflict, "dni already belongs to another identity")

	// ErrAlreadyDecided is returned when the record was already approved or cancelled
	ErrAlreadyDecided = apperrors.New(apperrors.ErrCodeConflict, "identity verification already decided")

	// ErrIncompleteIdentity is returned when required personal fields are empty
	ErrIncompleteIdentity = apperrors.New(apperrors.ErrCodeValidationFailed, "identity is missing required fields")

	// ErrInvalidReason is returned for a rejection reason outside 3 to 500 characters
	ErrInvalidReason = apperrors.New(apperrors.ErrCodeValidationFailed, "reason must be between 3 and 500 characters")

	// ErrInvalidEmail is returned for a blank email
	ErrInvalidEmail = apperrors.InvalidInput("email", "must not be empty")
)

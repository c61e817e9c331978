package emailverification

import (
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
)

var (
	// ErrTokenNotFound is returned when no record matches a token
	ErrTokenNotFound = apperrors.New(apperrors.ErrCodeNotFound, "verification token not found")

	// ErrEmailNotFound is returned when no identity or record exists for an email
	ErrEmailNotFound = apperrors.New(apperrors.ErrCodeNotFound, "no identity registered for email")

	// ErrTokenExpired is returned when a token is past expiry or no longer pending
	ErrTokenExpired = expiringtoken.ErrExpired

	// ErrEmailAlreadyVerified is returned by Resend for a verified identity
	ErrEmailAlreadyVerified = apperrors.New(apperrors.ErrCodeAlreadyVerified, "email already verified")

	// ErrInvalidEmail is returned for a blank email
	ErrInvalidEmail = apperrors.InvalidInput("email", "must not be empty")
)

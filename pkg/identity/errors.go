package identity

import (
	apperrors "github.com/tendant/simple-verification/pkg/errors"
)

var (
	// ErrIdentityNotFound is returned when no identity matches the lookup
	ErrIdentityNotFound = apperrors.New(apperrors.ErrCodeNotFound, "identity not found")

	// ErrEmailTaken is returned by Create for a duplicate email
	ErrEmailTaken = apperrors.New(apperrors.ErrCodeConflict, "identity email already registered")
)

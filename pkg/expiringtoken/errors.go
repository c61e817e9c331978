package expiringtoken

import (
	"fmt"

	apperrors "github.com/tendant/simple-verification/pkg/errors"
)

var (
	// ErrInvalidTransition is wrapped by every TransitionError
	ErrInvalidTransition = apperrors.New(apperrors.ErrCodeInvalidTransition, "invalid verification status transition")

	// ErrExpired is returned when a pending token is used past its expiry
	ErrExpired = apperrors.New(apperrors.ErrCodeTokenExpired, "verification token has expired")
)

// TransitionError describes an illegal state change
type TransitionError struct {
	Kind Kind
	From Status
	To   Status
}

func newTransitionError(kind Kind, from, to Status) *TransitionError {
	return &TransitionError{Kind: kind, From: from, To: to}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s verification cannot move from %s to %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
)

// EmailRequest is the body of request and resend
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// VerifyEmailRequest represents the request to verify an email
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

// RequestResponse is returned once a link has been issued
type RequestResponse struct {
	ID        uuid.UUID `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationResponse describes one email verification record
type VerificationResponse struct {
	ID           uuid.UUID            `json:"id"`
	SubjectEmail string               `json:"email"`
	Status       expiringtoken.Status `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	ExpiresAt    time.Time            `json:"expires_at"`
	VerifiedAt   *time.Time           `json:"verified_at,omitempty"`
}

package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
)

type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type RejectRequest struct {
	Email  string  `json:"email" validate:"required,email,max=254"`
	Reason *string `json:"reason,omitempty"`
}

type ListQuery struct {
	Status   string `validate:"omitempty,oneof=PENDING VERIFIED EXPIRED CANCELLED"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0"`
}

// VerificationResponse describes one identity verification record
type VerificationResponse struct {
	ID           uuid.UUID            `json:"id"`
	IdentityID   uuid.UUID            `json:"identity_id"`
	SubjectEmail string               `json:"email"`
	Status       expiringtoken.Status `json:"status"`
	Attempts     int                  `json:"attempts"`
	MaxAttempts  int                  `json:"max_attempts"`
	Reason       *string              `json:"reason,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	ExpiresAt    time.Time            `json:"expires_at"`
	VerifiedAt   *time.Time           `json:"verified_at,omitempty"`
}

type ListResponse struct {
	Items    []VerificationResponse `json:"items"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

package emailverification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
)

// Record is an email verification request for one identity
type Record struct {
	expiringtoken.Token
	IdentityID uuid.UUID
}

var (
	// ErrRecordNotFound is returned by repositories when no record matches
	ErrRecordNotFound = errors.New("email verification record not found")

	// ErrStaleRecord is returned when a guarded update finds the record no
	// longer pending or already past its expiry
	ErrStaleRecord = errors.New("email verification record is no longer pending")

	// ErrIdentityGone is returned when the identity a record points to was deleted
	ErrIdentityGone = errors.New("identity for email verification no longer exists")
)

// Repository persists email verification records.
// Every method is a single atomic unit.
type Repository interface {
	// CreateSuperseding inserts rec and moves every other PENDING record for
	// the same subject email to EXPIRED. It returns how many were superseded.
	CreateSuperseding(ctx context.Context, rec Record) (int64, error)

	GetByTokenHash(ctx context.Context, hash []byte) (Record, error)

	// GetLatestByEmail returns the most recently created record for email
	GetLatestByEmail(ctx context.Context, email string) (Record, error)

	// MarkVerified sets the record VERIFIED and the identity's email_verified
	// flag together. The record must still be PENDING and unexpired at now,
	// otherwise ErrStaleRecord is returned and nothing is written.
	MarkVerified(ctx context.Context, id, identityID uuid.UUID, now time.Time) error

	// MarkExpired writes EXPIRED on a PENDING record
	MarkExpired(ctx context.Context, id uuid.UUID) error
}

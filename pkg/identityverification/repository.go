package identityverification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
)

// Record is a manual identity verification request awaiting an admin decision
type Record struct {
	expiringtoken.Token
	IdentityID  uuid.UUID
	Attempts    int
	MaxAttempts int
	Reason      *string
}

// CanAttempt reports whether another approval attempt is allowed at now
func (r *Record) CanAttempt(now time.Time) bool {
	return r.Attempts < r.MaxAttempts && r.IsValid(now)
}

// AttemptsRemaining never goes below zero
func (r *Record) AttemptsRemaining() int {
	if r.Attempts >= r.MaxAttempts {
		return 0
	}
	return r.MaxAttempts - r.Attempts
}

// RecordFailure counts one failed attempt. Reaching MaxAttempts forces EXPIRED.
func (r *Record) RecordFailure() error {
	if r.Status != expiringtoken.StatusPending || r.Attempts >= r.MaxAttempts {
		return ErrStaleRecord
	}
	r.Attempts++
	if r.Attempts >= r.MaxAttempts {
		return r.Expire()
	}
	return nil
}

var (
	// ErrRecordNotFound is returned by repositories when no record matches
	ErrRecordNotFound = errors.New("identity verification record not found")

	// ErrStaleRecord is returned when a guarded update finds the record no
	// longer pending, past expiry, or out of attempts
	ErrStaleRecord = errors.New("identity verification record is no longer pending")

	// ErrIdentityGone is returned when the identity a record points to was deleted
	ErrIdentityGone = errors.New("identity for verification no longer exists")

	// ErrIdentityVerified is returned by Approve when another approval won the race
	ErrIdentityVerified = errors.New("identity already admin-verified")
)

// ListFilter selects a page of records. Status matches the observed status,
// so a lapsed PENDING record is listed as EXPIRED.
type ListFilter struct {
	Status   *expiringtoken.Status
	Page     int
	PageSize int
	Now      time.Time
}

// Offset is the zero-based row offset of the page
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Repository persists identity verification records.
// Every method is a single atomic unit.
type Repository interface {
	// CreateSuperseding inserts rec and moves every other PENDING record for
	// the same subject email to EXPIRED, returning how many were superseded
	CreateSuperseding(ctx context.Context, rec Record) (int64, error)

	GetByID(ctx context.Context, id uuid.UUID) (Record, error)

	// GetLatestByEmail returns the most recently created record for email
	GetLatestByEmail(ctx context.Context, email string) (Record, error)

	// IncrementAttempts adds one attempt and forces EXPIRED when the new
	// value reaches max_attempts. Returns ErrStaleRecord when the record is
	// not PENDING or has no attempts left.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (Record, error)

	// Approve sets the identity admin-verified, recomputes its completeness
	// and sets the record VERIFIED, all or nothing.
	Approve(ctx context.Context, id, identityID uuid.UUID, now time.Time) error

	// Cancel sets a PENDING, unexpired record CANCELLED with an optional reason
	Cancel(ctx context.Context, id uuid.UUID, reason *string, now time.Time) error

	// MarkExpired writes EXPIRED on a PENDING record
	MarkExpired(ctx context.Context, id uuid.UUID) error

	// List returns one page of records, newest first, and the total match count
	List(ctx context.Context, filter ListFilter) ([]Record, int64, error)
}

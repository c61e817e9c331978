package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identityverification"
	"github.com/tendant/simple-verification/pkg/utils"
)

// IdentityVerificationRepository implements identityverification.Repository
type IdentityVerificationRepository struct {
	db *DB
}

var _ identityverification.Repository = (*IdentityVerificationRepository)(nil)

func (r *IdentityVerificationRepository) CreateSuperseding(ctx context.Context, rec identityverification.Record) (int64, error) {
	var superseded int64
	err := r.db.write(func(t *tables) error {
		if _, ok := t.Identities[rec.IdentityID]; !ok {
			return identityverification.ErrIdentityGone
		}
		for i := range t.IdentityVerifications {
			iv := &t.IdentityVerifications[i]
			if iv.SubjectEmail == rec.SubjectEmail && iv.Status == expiringtoken.StatusPending {
				iv.Status = expiringtoken.StatusExpired
				superseded++
			}
		}
		t.IdentityVerifications = append(t.IdentityVerifications, rec)
		return nil
	})
	return superseded, err
}

func (r *IdentityVerificationRepository) GetByID(ctx context.Context, id uuid.UUID) (identityverification.Record, error) {
	var out identityverification.Record
	err := r.db.read(func(t *tables) error {
		iv := findIdentityVerification(t, id)
		if iv == nil {
			return identityverification.ErrRecordNotFound
		}
		out = *iv
		return nil
	})
	return out, err
}

func (r *IdentityVerificationRepository) GetLatestByEmail(ctx context.Context, email string) (identityverification.Record, error) {
	email = utils.NormalizeEmail(email)
	var out identityverification.Record
	err := r.db.read(func(t *tables) error {
		found := false
		for _, iv := range t.IdentityVerifications {
			if iv.SubjectEmail == email && (!found || !iv.CreatedAt.Before(out.CreatedAt)) {
				out = iv
				found = true
			}
		}
		if !found {
			return identityverification.ErrRecordNotFound
		}
		return nil
	})
	return out, err
}

func (r *IdentityVerificationRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (identityverification.Record, error) {
	var out identityverification.Record
	err := r.db.write(func(t *tables) error {
		iv := findIdentityVerification(t, id)
		if iv == nil {
			return identityverification.ErrStaleRecord
		}
		if err := iv.RecordFailure(); err != nil {
			return err
		}
		out = *iv
		return nil
	})
	return out, err
}

func (r *IdentityVerificationRepository) Approve(ctx context.Context, id, identityID uuid.UUID, now time.Time) error {
	return r.db.write(func(t *tables) error {
		ident, ok := t.Identities[identityID]
		if !ok {
			return identityverification.ErrIdentityGone
		}
		if ident.IsVerified {
			return identityverification.ErrIdentityVerified
		}

		iv := findIdentityVerification(t, id)
		if iv == nil || !iv.CanAttempt(now) {
			return identityverification.ErrStaleRecord
		}
		verifiedAt := now.UTC()
		iv.Status = expiringtoken.StatusVerified
		iv.VerifiedAt = &verifiedAt

		ident.IsVerified = true
		ident.IsComplete = ident.ComputeComplete()
		ident.UpdatedAt = verifiedAt
		t.Identities[identityID] = ident
		return nil
	})
}

func (r *IdentityVerificationRepository) Cancel(ctx context.Context, id uuid.UUID, reason *string, now time.Time) error {
	return r.db.write(func(t *tables) error {
		iv := findIdentityVerification(t, id)
		if iv == nil || !iv.IsValid(now) {
			return identityverification.ErrStaleRecord
		}
		iv.Status = expiringtoken.StatusCancelled
		iv.Reason = reason
		return nil
	})
}

func (r *IdentityVerificationRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.db.write(func(t *tables) error {
		iv := findIdentityVerification(t, id)
		if iv == nil || iv.Status != expiringtoken.StatusPending {
			return identityverification.ErrStaleRecord
		}
		iv.Status = expiringtoken.StatusExpired
		return nil
	})
}

// List returns records newest first. Records created at the same instant
// are ordered by insertion, latest first.
func (r *IdentityVerificationRepository) List(ctx context.Context, filter identityverification.ListFilter) ([]identityverification.Record, int64, error) {
	var matched []identityverification.Record
	err := r.db.read(func(t *tables) error {
		for i := len(t.IdentityVerifications) - 1; i >= 0; i-- {
			iv := t.IdentityVerifications[i]
			if filter.Status == nil || iv.EffectiveStatus(filter.Now) == *filter.Status {
				matched = append(matched, iv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sortNewestFirst(matched)

	total := int64(len(matched))
	start := filter.Offset()
	if start >= len(matched) {
		return []identityverification.Record{}, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// sortNewestFirst keeps the reversed insertion order for equal timestamps
func sortNewestFirst(records []identityverification.Record) {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].CreatedAt.After(records[b].CreatedAt)
	})
}

func findIdentityVerification(t *tables, id uuid.UUID) *identityverification.Record {
	for i := range t.IdentityVerifications {
		if t.IdentityVerifications[i].ID == id {
			return &t.IdentityVerifications[i]
		}
	}
	return nil
}

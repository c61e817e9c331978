package inmem

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/utils"
)

// EmailVerificationRepository implements emailverification.Repository
type EmailVerificationRepository struct {
	db *DB
}

var _ emailverification.Repository = (*EmailVerificationRepository)(nil)

func (r *EmailVerificationRepository) CreateSuperseding(ctx context.Context, rec emailverification.Record) (int64, error) {
	var superseded int64
	err := r.db.write(func(t *tables) error {
		if _, ok := t.Identities[rec.IdentityID]; !ok {
			return emailverification.ErrIdentityGone
		}
		for i := range t.EmailVerifications {
			ev := &t.EmailVerifications[i]
			if ev.SubjectEmail == rec.SubjectEmail && ev.Status == expiringtoken.StatusPending {
				ev.Status = expiringtoken.StatusExpired
				superseded++
			}
		}
		t.EmailVerifications = append(t.EmailVerifications, rec)
		return nil
	})
	return superseded, err
}

func (r *EmailVerificationRepository) GetByTokenHash(ctx context.Context, hash []byte) (emailverification.Record, error) {
	var out emailverification.Record
	err := r.db.read(func(t *tables) error {
		for _, ev := range t.EmailVerifications {
			if bytes.Equal(ev.TokenHash, hash) {
				out = ev
				return nil
			}
		}
		return emailverification.ErrRecordNotFound
	})
	return out, err
}

func (r *EmailVerificationRepository) GetLatestByEmail(ctx context.Context, email string) (emailverification.Record, error) {
	email = utils.NormalizeEmail(email)
	var out emailverification.Record
	err := r.db.read(func(t *tables) error {
		found := false
		for _, ev := range t.EmailVerifications {
			if ev.SubjectEmail == email && (!found || !ev.CreatedAt.Before(out.CreatedAt)) {
				out = ev
				found = true
			}
		}
		if !found {
			return emailverification.ErrRecordNotFound
		}
		return nil
	})
	return out, err
}

func (r *EmailVerificationRepository) MarkVerified(ctx context.Context, id, identityID uuid.UUID, now time.Time) error {
	return r.db.write(func(t *tables) error {
		ev := findEmailVerification(t, id)
		if ev == nil || ev.Status != expiringtoken.StatusPending || !now.Before(ev.ExpiresAt) {
			return emailverification.ErrStaleRecord
		}
		verifiedAt := now.UTC()
		ev.Status = expiringtoken.StatusVerified
		ev.VerifiedAt = &verifiedAt

		ident, ok := t.Identities[identityID]
		if !ok {
			return emailverification.ErrIdentityGone
		}
		ident.EmailVerified = true
		ident.UpdatedAt = verifiedAt
		t.Identities[identityID] = ident
		return nil
	})
}

func (r *EmailVerificationRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.db.write(func(t *tables) error {
		ev := findEmailVerification(t, id)
		if ev == nil || ev.Status != expiringtoken.StatusPending {
			return emailverification.ErrStaleRecord
		}
		ev.Status = expiringtoken.StatusExpired
		return nil
	})
}

func findEmailVerification(t *tables, id uuid.UUID) *emailverification.Record {
	for i := range t.EmailVerifications {
		if t.EmailVerifications[i].ID == id {
			return &t.EmailVerifications[i]
		}
	}
	return nil
}

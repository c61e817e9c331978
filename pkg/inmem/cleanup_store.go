package inmem

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
)

// CleanupStore implements cleanup.Store using the predicates' Match form
type CleanupStore struct {
	db *DB
}

var _ cleanup.Store = (*CleanupStore)(nil)

func (s *CleanupStore) CountUnverifiedIdentities(ctx context.Context, p cleanup.UnverifiedIdentityPredicate) (int64, error) {
	var n int64
	err := s.db.read(func(t *tables) error {
		for _, i := range t.Identities {
			if p.Match(i) {
				n++
			}
		}
		return nil
	})
	return n, err
}

// DeleteUnverifiedIdentities removes matching identities and every record
// they own, as the foreign key cascade does in Postgres.
func (s *CleanupStore) DeleteUnverifiedIdentities(ctx context.Context, p cleanup.UnverifiedIdentityPredicate) (int64, error) {
	var n int64
	err := s.db.write(func(t *tables) error {
		doomed := make(map[uuid.UUID]bool)
		for id, i := range t.Identities {
			if p.Match(i) {
				doomed[id] = true
			}
		}
		if len(doomed) == 0 {
			return nil
		}
		for id := range doomed {
			delete(t.Identities, id)
		}

		emails := t.EmailVerifications[:0]
		for _, ev := range t.EmailVerifications {
			if !doomed[ev.IdentityID] {
				emails = append(emails, ev)
			}
		}
		t.EmailVerifications = emails

		ivs := t.IdentityVerifications[:0]
		for _, iv := range t.IdentityVerifications {
			if !doomed[iv.IdentityID] {
				ivs = append(ivs, iv)
			}
		}
		t.IdentityVerifications = ivs

		n = int64(len(doomed))
		return nil
	})
	return n, err
}

func (s *CleanupStore) CountExpiredRecords(ctx context.Context, p cleanup.ExpiredRecordPredicate) (cleanup.ExpiredCounts, error) {
	var counts cleanup.ExpiredCounts
	err := s.db.read(func(t *tables) error {
		for _, ev := range t.EmailVerifications {
			if matchRecord(t, p, ev.Token, ev.IdentityID) {
				counts.EmailRecords++
			}
		}
		for _, iv := range t.IdentityVerifications {
			if matchRecord(t, p, iv.Token, iv.IdentityID) {
				counts.IdentityRecords++
			}
		}
		return nil
	})
	return counts, err
}

func (s *CleanupStore) DeleteExpiredRecords(ctx context.Context, p cleanup.ExpiredRecordPredicate) (cleanup.ExpiredCounts, error) {
	var counts cleanup.ExpiredCounts
	err := s.db.write(func(t *tables) error {
		emails := t.EmailVerifications[:0]
		for _, ev := range t.EmailVerifications {
			if matchRecord(t, p, ev.Token, ev.IdentityID) {
				counts.EmailRecords++
				continue
			}
			emails = append(emails, ev)
		}
		t.EmailVerifications = emails

		ivs := t.IdentityVerifications[:0]
		for _, iv := range t.IdentityVerifications {
			if matchRecord(t, p, iv.Token, iv.IdentityID) {
				counts.IdentityRecords++
				continue
			}
			ivs = append(ivs, iv)
		}
		t.IdentityVerifications = ivs
		return nil
	})
	return counts, err
}

func matchRecord(t *tables, p cleanup.ExpiredRecordPredicate, tok expiringtoken.Token, owner uuid.UUID) bool {
	var ownerPtr *identity.Identity
	if i, ok := t.Identities[owner]; ok {
		ownerPtr = &i
	}
	return p.Match(tok, ownerPtr)
}

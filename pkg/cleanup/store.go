package cleanup

import "context"

// ExpiredCounts splits category 2 by record table
type ExpiredCounts struct {
	EmailRecords    int64
	IdentityRecords int64
}

func (c ExpiredCounts) Total() int64 {
	return c.EmailRecords + c.IdentityRecords
}

// Store counts and deletes by predicate. Count and Delete for the same
// predicate must select the same rows.
type Store interface {
	CountUnverifiedIdentities(ctx context.Context, p UnverifiedIdentityPredicate) (int64, error)
	// DeleteUnverifiedIdentities removes matching identities together with
	// every verification record they own
	DeleteUnverifiedIdentities(ctx context.Context, p UnverifiedIdentityPredicate) (int64, error)

	CountExpiredRecords(ctx context.Context, p ExpiredRecordPredicate) (ExpiredCounts, error)
	DeleteExpiredRecords(ctx context.Context, p ExpiredRecordPredicate) (ExpiredCounts, error)
}

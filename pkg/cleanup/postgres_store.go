package cleanup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore runs cleanup statements against the verification schema
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CountUnverifiedIdentities(ctx context.Context, p UnverifiedIdentityPredicate) (int64, error) {
	where, args := p.SQL("i", 1)
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM identities i WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unverified identities: %w", err)
	}
	return n, nil
}

// DeleteUnverifiedIdentities removes the identities in one statement. Their
// verification records follow through ON DELETE CASCADE.
func (s *PostgresStore) DeleteUnverifiedIdentities(ctx context.Context, p UnverifiedIdentityPredicate) (int64, error) {
	where, args := p.SQL("i", 1)
	query := `DELETE FROM identities i WHERE ` + where
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete unverified identities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountExpiredRecords(ctx context.Context, p ExpiredRecordPredicate) (ExpiredCounts, error) {
	var counts ExpiredCounts
	where, args := p.SQL("r", 1)
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM email_verifications r WHERE `+where, args...).Scan(&counts.EmailRecords); err != nil {
		return ExpiredCounts{}, fmt.Errorf("count expired email verifications: %w", err)
	}
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM identity_verifications r WHERE `+where, args...).Scan(&counts.IdentityRecords); err != nil {
		return ExpiredCounts{}, fmt.Errorf("count expired identity verifications: %w", err)
	}
	return counts, nil
}

// DeleteExpiredRecords clears both record tables in one transaction
func (s *PostgresStore) DeleteExpiredRecords(ctx context.Context, p ExpiredRecordPredicate) (ExpiredCounts, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ExpiredCounts{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	where, args := p.SQL("r", 1)
	var counts ExpiredCounts

	tag, err := tx.Exec(ctx, `DELETE FROM email_verifications r WHERE `+where, args...)
	if err != nil {
		return ExpiredCounts{}, fmt.Errorf("delete expired email verifications: %w", err)
	}
	counts.EmailRecords = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM identity_verifications r WHERE `+where, args...)
	if err != nil {
		return ExpiredCounts{}, fmt.Errorf("delete expired identity verifications: %w", err)
	}
	counts.IdentityRecords = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return ExpiredCounts{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return counts, nil
}

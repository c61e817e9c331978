package emailverification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/utils"
)

const recordColumns = `id, identity_id, token_hash, subject_email, status, created_at, expires_at, verified_at`

// PostgresRepository implements Repository on the email_verifications table
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new email verification repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.IdentityID,
		&rec.TokenHash,
		&rec.SubjectEmail,
		&status,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.VerifiedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Kind = expiringtoken.KindEmail
	rec.Status, err = expiringtoken.ParseStatus(status)
	return rec, err
}

func (r *PostgresRepository) CreateSuperseding(ctx context.Context, rec Record) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE email_verifications
		SET status = 'EXPIRED'
		WHERE subject_email = $1 AND status = 'PENDING'
	`, rec.SubjectEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede pending records: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO email_verifications (id, identity_id, token_hash, subject_email, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.IdentityID, rec.TokenHash, rec.SubjectEmail, string(rec.Status), rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert email verification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash []byte) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_verifications WHERE token_hash = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("get email verification by token: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) GetLatestByEmail(ctx context.Context, email string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_verifications
		WHERE subject_email = $1
		ORDER BY created_at DESC
		LIMIT 1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, utils.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("get latest email verification: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id, identityID uuid.UUID, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE email_verifications
		SET status = 'VERIFIED', verified_at = $2
		WHERE id = $1 AND status = 'PENDING' AND expires_at > $2
	`, id, now)
	if err != nil {
		return fmt.Errorf("failed to mark email verification verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRecord
	}

	tag, err = tx.Exec(ctx, `
		UPDATE identities
		SET email_verified = TRUE, updated_at = $2
		WHERE id = $1
	`, identityID, now)
	if err != nil {
		return fmt.Errorf("failed to mark identity email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityGone
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE email_verifications SET status = 'EXPIRED'
		WHERE id = $1 AND status = 'PENDING'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark email verification expired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRecord
	}
	return nil
}

package identityverification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/utils"
)

const recordColumns = `id, identity_id, token_hash, subject_email, status, attempts, max_attempts, reason, created_at, expires_at, verified_at`

// PostgresRepository implements Repository on the identity_verifications table
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new identity verification repository
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
		&rec.Attempts,
		&rec.MaxAttempts,
		&rec.Reason,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.VerifiedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Kind = expiringtoken.KindIdentity
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
		UPDATE identity_verifications
		SET status = 'EXPIRED'
		WHERE subject_email = $1 AND status = 'PENDING'
	`, rec.SubjectEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede pending records: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO identity_verifications
			(id, identity_id, token_hash, subject_email, status, attempts, max_attempts, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.IdentityID, rec.TokenHash, rec.SubjectEmail, string(rec.Status),
		rec.Attempts, rec.MaxAttempts, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert identity verification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM identity_verifications WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("get identity verification: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) GetLatestByEmail(ctx context.Context, email string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM identity_verifications
		WHERE subject_email = $1
		ORDER BY created_at DESC
		LIMIT 1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, utils.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("get latest identity verification: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (Record, error) {
	query := `
		UPDATE identity_verifications
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN 'EXPIRED' ELSE status END
		WHERE id = $1 AND status = 'PENDING' AND attempts < max_attempts
		RETURNING ` + recordColumns
	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrStaleRecord
		}
		return Record{}, fmt.Errorf("increment identity verification attempts: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Approve(ctx context.Context, id, identityID uuid.UUID, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var alreadyVerified bool
	err = tx.QueryRow(ctx, `SELECT is_verified FROM identities WHERE id = $1 FOR UPDATE`, identityID).Scan(&alreadyVerified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrIdentityGone
		}
		return fmt.Errorf("failed to lock identity: %w", err)
	}
	if alreadyVerified {
		return ErrIdentityVerified
	}

	tag, err := tx.Exec(ctx, `
		UPDATE identity_verifications
		SET status = 'VERIFIED', verified_at = $2
		WHERE id = $1 AND status = 'PENDING' AND expires_at > $2 AND attempts < max_attempts
	`, id, now)
	if err != nil {
		return fmt.Errorf("failed to mark identity verification verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRecord
	}

	_, err = tx.Exec(ctx, `UPDATE identities SET is_verified = TRUE, updated_at = $2 WHERE id = $1`, identityID, now)
	if err != nil {
		return fmt.Errorf("failed to mark identity verified: %w", err)
	}
	// is_complete reads the is_verified written above
	_, err = tx.Exec(ctx, `UPDATE identities SET is_complete = `+identity.CompleteSQL+` WHERE id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("failed to recompute identity completeness: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, id uuid.UUID, reason *string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE identity_verifications
		SET status = 'CANCELLED', reason = $2
		WHERE id = $1 AND status = 'PENDING' AND expires_at > $3
	`, id, reason, now)
	if err != nil {
		return fmt.Errorf("failed to cancel identity verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRecord
	}
	return nil
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE identity_verifications SET status = 'EXPIRED'
		WHERE id = $1 AND status = 'PENDING'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark identity verification expired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRecord
	}
	return nil
}

// statusCondition renders the observed-status filter; $1 is always now
func statusCondition(status *expiringtoken.Status) string {
	if status == nil {
		return "TRUE"
	}
	switch *status {
	case expiringtoken.StatusPending:
		return "status = 'PENDING' AND expires_at > $1"
	case expiringtoken.StatusExpired:
		return "(status = 'EXPIRED' OR (status = 'PENDING' AND expires_at <= $1))"
	case expiringtoken.StatusVerified:
		return "status = 'VERIFIED'"
	case expiringtoken.StatusCancelled:
		return "status = 'CANCELLED'"
	}
	return "FALSE"
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Record, int64, error) {
	where := statusCondition(filter.Status)

	var total int64
	countQuery := `SELECT count(*) FROM identity_verifications WHERE ($1::timestamptz IS NOT NULL) AND ` + where
	if err := r.db.QueryRow(ctx, countQuery, filter.Now).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count identity verifications: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM identity_verifications
		WHERE ($1::timestamptz IS NOT NULL) AND ` + where + `
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, filter.Now, filter.PageSize, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list identity verifications: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan identity verification: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list identity verifications: %w", err)
	}
	return records, total, nil
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-verification/pkg/utils"
)

const identityColumns = `id, email, dni, name, phone, address, email_verified, is_verified, is_complete, created_at, updated_at`

// PostgresRepository implements Repository on the identities table
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new identity repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// scanIdentity reads one identity row selected with identityColumns
func scanIdentity(row pgx.Row) (Identity, error) {
	var i Identity
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.DNI,
		&i.Name,
		&i.Phone,
		&i.Address,
		&i.EmailVerified,
		&i.IsVerified,
		&i.IsComplete,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	i, err := scanIdentity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("get identity by id: %w", err)
	}
	return i, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	i, err := scanIdentity(r.db.QueryRow(ctx, query, utils.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("get identity by email: %w", err)
	}
	return i, nil
}

func (r *PostgresRepository) FindByDNI(ctx context.Context, dni string) ([]Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE dni = $1 AND dni <> '' ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, dni)
	if err != nil {
		return nil, fmt.Errorf("find identities by dni: %w", err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, i)
	}
	return identities, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, params CreateParams) (Identity, error) {
	params = params.Normalize(time.Now())
	query := `
		INSERT INTO identities (email, dni, name, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + identityColumns

	i, err := scanIdentity(r.db.QueryRow(ctx, query,
		params.Email, params.DNI, params.Name, params.Phone, params.Address, params.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, fmt.Errorf("create identity: %w", err)
	}
	return i, nil
}

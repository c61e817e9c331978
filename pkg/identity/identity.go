package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/utils"
)

// Identity is the person record the verification workflows act on.
// Its lifecycle belongs to the registration flow; this module only flips
// the verification flags and the completeness indicator.
type Identity struct {
	ID            uuid.UUID
	Email         string
	DNI           string
	Name          string
	Phone         string
	Address       string
	EmailVerified bool
	IsVerified    bool
	IsComplete    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MissingFields lists the personal fields an admin approval requires but
// the identity does not have.
func (i Identity) MissingFields() []string {
	return utils.BlankFields(
		[2]string{"dni", i.DNI},
		[2]string{"name", i.Name},
		[2]string{"phone", i.Phone},
		[2]string{"address", i.Address},
	)
}

// CompleteSQL evaluates ComputeComplete against a row of identities
const CompleteSQL = `(btrim(dni, E' \t\r\n') <> '' AND btrim(name, E' \t\r\n') <> ''
	AND btrim(phone, E' \t\r\n') <> '' AND btrim(address, E' \t\r\n') <> ''
	AND email <> '' AND is_verified)`

// ComputeComplete reports whether every required field is present and the
// identity has been admin-verified.
func (i Identity) ComputeComplete() bool {
	return len(i.MissingFields()) == 0 && i.Email != "" && i.IsVerified
}

// Repository is the lookup surface the verification services consume
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Identity, error)
	GetByEmail(ctx context.Context, email string) (Identity, error)
	// FindByDNI returns every identity holding dni
	FindByDNI(ctx context.Context, dni string) ([]Identity, error)
	// Create stores a new identity; registration owns this in production
	Create(ctx context.Context, params CreateParams) (Identity, error)
}

// CreateParams carries the fields of a new identity
type CreateParams struct {
	Email   string
	DNI     string
	Name    string
	Phone   string
	Address string
	// CreatedAt defaults to now when zero
	CreatedAt time.Time
}

// Normalize returns a copy of p with the email normalized
func (p CreateParams) Normalize(now time.Time) CreateParams {
	p.Email = utils.NormalizeEmail(p.Email)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
	return p
}

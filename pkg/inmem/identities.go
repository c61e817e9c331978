package inmem

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/utils"
)

// IdentityRepository implements identity.Repository
type IdentityRepository struct {
	db *DB
}

var _ identity.Repository = (*IdentityRepository)(nil)

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (identity.Identity, error) {
	var out identity.Identity
	err := r.db.read(func(t *tables) error {
		i, ok := t.Identities[id]
		if !ok {
			return identity.ErrIdentityNotFound
		}
		out = i
		return nil
	})
	return out, err
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (identity.Identity, error) {
	email = utils.NormalizeEmail(email)
	var out identity.Identity
	err := r.db.read(func(t *tables) error {
		i, ok := findIdentityByEmail(t, email)
		if !ok {
			return identity.ErrIdentityNotFound
		}
		out = i
		return nil
	})
	return out, err
}

func (r *IdentityRepository) FindByDNI(ctx context.Context, dni string) ([]identity.Identity, error) {
	if strings.TrimSpace(dni) == "" {
		return nil, nil
	}
	var out []identity.Identity
	err := r.db.read(func(t *tables) error {
		for _, i := range t.Identities {
			if i.DNI == dni {
				out = append(out, i)
			}
		}
		return nil
	})
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, err
}

func (r *IdentityRepository) Create(ctx context.Context, params identity.CreateParams) (identity.Identity, error) {
	params = params.Normalize(time.Now())
	i := identity.Identity{
		ID:        uuid.New(),
		Email:     params.Email,
		DNI:       params.DNI,
		Name:      params.Name,
		Phone:     params.Phone,
		Address:   params.Address,
		CreatedAt: params.CreatedAt,
		UpdatedAt: params.CreatedAt,
	}
	err := r.db.write(func(t *tables) error {
		if _, taken := findIdentityByEmail(t, i.Email); taken {
			return identity.ErrEmailTaken
		}
		t.Identities[i.ID] = i
		return nil
	})
	if err != nil {
		return identity.Identity{}, err
	}
	return i, nil
}

func findIdentityByEmail(t *tables, email string) (identity.Identity, bool) {
	for _, i := range t.Identities {
		if i.Email == email {
			return i, true
		}
	}
	return identity.Identity{}, false
}

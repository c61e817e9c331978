package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verification/internal/pgtest"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/identityverification"
)

type pgSeed struct {
	identities *identity.PostgresRepository
	email      *emailverification.PostgresRepository
	ident      *identityverification.PostgresRepository
}

func newPgSeed(pool *pgxpool.Pool) *pgSeed {
	return &pgSeed{
		identities: identity.NewPostgresRepository(pool),
		email:      emailverification.NewPostgresRepository(pool),
		ident:      identityverification.NewPostgresRepository(pool),
	}
}

func (s *pgSeed) identity(t *testing.T, email string, age time.Duration) identity.Identity {
	t.Helper()
	i, err := s.identities.Create(context.Background(), identity.CreateParams{Email: email, CreatedAt: now.Add(-age)})
	require.NoError(t, err)
	return i
}

func (s *pgSeed) emailRecord(t *testing.T, owner identity.Identity, created time.Time, ttl time.Duration) emailverification.Record {
	t.Helper()
	tok, _, err := expiringtoken.New(expiringtoken.KindEmail, owner.Email, ttl, created)
	require.NoError(t, err)
	rec := emailverification.Record{Token: tok, IdentityID: owner.ID}
	_, err = s.email.CreateSuperseding(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func (s *pgSeed) identityRecord(t *testing.T, owner identity.Identity, created time.Time, ttl time.Duration) identityverification.Record {
	t.Helper()
	tok, _, err := expiringtoken.New(expiringtoken.KindIdentity, owner.Email, ttl, created)
	require.NoError(t, err)
	rec := identityverification.Record{Token: tok, IdentityID: owner.ID, MaxAttempts: 3}
	_, err = s.ident.CreateSuperseding(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM `+table).Scan(&n))
	return n
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	engine := newEngine(cleanup.NewPostgresStore(pool))

	t.Run("PreviewMatchesTrigger", func(t *testing.T) {
		pgtest.Truncate(t, pool)
		seed := newPgSeed(pool)

		old := seed.identity(t, "old@example.com", 10*24*time.Hour)
		young := seed.identity(t, "young@example.com", 24*time.Hour)
		verified := seed.identity(t, "verified@example.com", 30*24*time.Hour)

		// old's records go with old through the cascade, not category 2
		seed.emailRecord(t, old, now.Add(-2*time.Hour), 15*time.Minute)
		seed.identityRecord(t, old, now.Add(-48*time.Hour), 24*time.Hour)

		seed.identityRecord(t, young, now.Add(-48*time.Hour), 24*time.Hour)
		live := seed.emailRecord(t, young, now.Add(-time.Minute), 15*time.Minute)

		done := seed.emailRecord(t, verified, now.Add(-time.Hour), 2*time.Hour)
		require.NoError(t, seed.email.MarkVerified(ctx, done.ID, verified.ID, now.Add(-30*time.Minute)))

		preview, err := engine.Preview(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), preview.UnverifiedIdentities)
		assert.Equal(t, int64(0), preview.ExpiredEmailRecords)
		assert.Equal(t, int64(1), preview.ExpiredIdentityRecords)
		assert.Equal(t, int64(2), preview.Total)

		res, err := engine.Trigger(ctx, 7)
		require.NoError(t, err)
		require.NoError(t, res.Err())
		assert.Equal(t, preview.UnverifiedIdentities, res.UnverifiedIdentitiesDeleted)
		assert.Equal(t, preview.ExpiredEmailRecords+preview.ExpiredIdentityRecords, res.ExpiredRecordsDeleted)
		assert.Equal(t, preview.Total, res.Total)

		_, err = seed.identities.GetByID(ctx, old.ID)
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
		_, err = seed.email.GetByTokenHash(ctx, live.TokenHash)
		assert.NoError(t, err, "valid records survive")
		_, err = seed.email.GetByTokenHash(ctx, done.TokenHash)
		assert.NoError(t, err, "verified records survive")

		assert.Equal(t, int64(2), countRows(t, pool, "identities"))
		assert.Equal(t, int64(2), countRows(t, pool, "email_verifications"))
		assert.Equal(t, int64(0), countRows(t, pool, "identity_verifications"))

		again, err := engine.Trigger(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, again.Total)
	})

	t.Run("ExpiredRecordsAlone", func(t *testing.T) {
		pgtest.Truncate(t, pool)
		seed := newPgSeed(pool)

		ident := seed.identity(t, "recent@example.com", time.Hour)
		seed.emailRecord(t, ident, now.Add(-time.Hour), 15*time.Minute)
		seed.identityRecord(t, ident, now.Add(-30*time.Minute), 24*time.Hour)

		counts, err := engine.CleanExpiredRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts.EmailRecords)
		assert.Equal(t, int64(0), counts.IdentityRecords)

		n, err := engine.CleanUnverifiedIdentities(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "days_old 0 takes every unverified identity")
		assert.Equal(t, int64(0), countRows(t, pool, "identity_verifications"))
	})
}

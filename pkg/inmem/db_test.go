package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/identityverification"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func createIdentity(t *testing.T, db *DB, email string, createdAt time.Time) identity.Identity {
	t.Helper()
	i, err := db.Identities().Create(context.Background(), identity.CreateParams{
		Email:     email,
		DNI:       "X" + email,
		Name:      "Name",
		Phone:     "555",
		Address:   "Street 1",
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return i
}

func emailRecord(t *testing.T, ident identity.Identity, ttl time.Duration, now time.Time) emailverification.Record {
	t.Helper()
	tok, _, err := expiringtoken.New(expiringtoken.KindEmail, ident.Email, ttl, now)
	require.NoError(t, err)
	return emailverification.Record{Token: tok, IdentityID: ident.ID}
}

func TestIdentityRepository(t *testing.T) {
	ctx := context.Background()
	db := New()
	repo := db.Identities()

	created := createIdentity(t, db, " Alice@Example.com ", t0)
	assert.Equal(t, "alice@example.com", created.Email)

	got, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.Create(ctx, identity.CreateParams{Email: "alice@example.com"})
	assert.ErrorIs(t, err, identity.ErrEmailTaken)

	_, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	holders, err := repo.FindByDNI(ctx, created.DNI)
	require.NoError(t, err)
	assert.Len(t, holders, 1)

	holders, err = repo.FindByDNI(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, holders)
}

func TestWriteIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	db := New()
	ident := createIdentity(t, db, "bob@example.com", t0)
	rec := emailRecord(t, ident, 15*time.Minute, t0)
	_, err := db.EmailVerifications().CreateSuperseding(ctx, rec)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.write(func(tb *tables) error {
		tb.EmailVerifications[0].Status = expiringtoken.StatusVerified
		delete(tb.Identities, ident.ID)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := db.EmailVerifications().GetLatestByEmail(ctx, ident.Email)
	require.NoError(t, err)
	assert.Equal(t, expiringtoken.StatusPending, got.Status)
	_, err = db.Identities().GetByID(ctx, ident.ID)
	assert.NoError(t, err)
}

func TestEmailVerificationRepository(t *testing.T) {
	ctx := context.Background()
	db := New()
	repo := db.EmailVerifications()
	ident := createIdentity(t, db, "carol@example.com", t0)

	first := emailRecord(t, ident, 15*time.Minute, t0)
	n, err := repo.CreateSuperseding(ctx, first)
	require.NoError(t, err)
	assert.Zero(t, n)

	second := emailRecord(t, ident, 15*time.Minute, t0)
	n, err = repo.CreateSuperseding(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	latest, err := repo.GetLatestByEmail(ctx, ident.Email)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID, "same-instant records resolve to the last inserted")

	old, err := repo.GetByTokenHash(ctx, first.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, expiringtoken.StatusExpired, old.Status)

	t.Run("GuardedVerify", func(t *testing.T) {
		err := repo.MarkVerified(ctx, first.ID, ident.ID, t0.Add(time.Minute))
		assert.ErrorIs(t, err, emailverification.ErrStaleRecord)

		err = repo.MarkVerified(ctx, second.ID, ident.ID, t0.Add(15*time.Minute))
		assert.ErrorIs(t, err, emailverification.ErrStaleRecord, "expiry is exclusive")

		require.NoError(t, repo.MarkVerified(ctx, second.ID, ident.ID, t0.Add(time.Minute)))
		got, err := db.Identities().GetByID(ctx, ident.ID)
		require.NoError(t, err)
		assert.True(t, got.EmailVerified)
	})

	t.Run("IdentityGoneRollsBack", func(t *testing.T) {
		rec := emailRecord(t, ident, time.Hour, t0)
		_, err := repo.CreateSuperseding(ctx, rec)
		require.NoError(t, err)

		err = repo.MarkVerified(ctx, rec.ID, uuid.New(), t0)
		assert.ErrorIs(t, err, emailverification.ErrIdentityGone)
		got, err := repo.GetByTokenHash(ctx, rec.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, expiringtoken.StatusPending, got.Status)
	})
}

func TestIdentityVerificationAttempts(t *testing.T) {
	ctx := context.Background()
	db := New()
	repo := db.IdentityVerifications()
	ident := createIdentity(t, db, "dan@example.com", t0)

	tok, _, err := expiringtoken.New(expiringtoken.KindIdentity, ident.Email, 24*time.Hour, t0)
	require.NoError(t, err)
	rec := identityverification.Record{Token: tok, IdentityID: ident.ID, MaxAttempts: 2}
	_, err = repo.CreateSuperseding(ctx, rec)
	require.NoError(t, err)

	got, err := repo.IncrementAttempts(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, expiringtoken.StatusPending, got.Status)

	got, err = repo.IncrementAttempts(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, expiringtoken.StatusExpired, got.Status)

	_, err = repo.IncrementAttempts(ctx, rec.ID)
	assert.ErrorIs(t, err, identityverification.ErrStaleRecord)

	stored, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Attempts)
}

func TestIdentityVerificationList(t *testing.T) {
	ctx := context.Background()
	db := New()
	repo := db.IdentityVerifications()

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		ident := createIdentity(t, db, email, t0)
		tok, _, err := expiringtoken.New(expiringtoken.KindIdentity, email, time.Hour, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		_, err = repo.CreateSuperseding(ctx, identityverification.Record{Token: tok, IdentityID: ident.ID, MaxAttempts: 3})
		require.NoError(t, err)
	}

	now := t0.Add(2*time.Hour + 30*time.Minute)
	items, total, err := repo.List(ctx, identityverification.ListFilter{Page: 1, PageSize: 2, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "c@example.com", items[0].SubjectEmail)

	expired := expiringtoken.StatusExpired
	items, total, err = repo.List(ctx, identityverification.ListFilter{Status: &expired, Page: 1, PageSize: 10, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "lapsed pending records list as expired")
	assert.Len(t, items, 2)

	items, _, err = repo.List(ctx, identityverification.ListFilter{Page: 5, PageSize: 10, Now: now})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFilePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(dir)
	require.NoError(t, err)
	ident := createIdentity(t, db, "erin@example.com", t0)
	rec := emailRecord(t, ident, time.Hour, t0)
	_, err = db.EmailVerifications().CreateSuperseding(ctx, rec)
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	got, err := reopened.EmailVerifications().GetByTokenHash(ctx, rec.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

	gotIdent, err := reopened.Identities().GetByEmail(ctx, "erin@example.com")
	require.NoError(t, err)
	assert.Equal(t, ident.ID, gotIdent.ID)
}

func TestCleanupStoreCascades(t *testing.T) {
	ctx := context.Background()
	db := New()
	store := db.Cleanup()

	stale := createIdentity(t, db, "stale@example.com", t0.AddDate(0, 0, -10))
	fresh := createIdentity(t, db, "fresh@example.com", t0.AddDate(0, 0, -1))

	staleRec := emailRecord(t, stale, time.Minute, t0.Add(-time.Hour))
	freshRec := emailRecord(t, fresh, time.Minute, t0.Add(-time.Hour))
	_, err := db.EmailVerifications().CreateSuperseding(ctx, staleRec)
	require.NoError(t, err)
	_, err = db.EmailVerifications().CreateSuperseding(ctx, freshRec)
	require.NoError(t, err)

	unverified := cleanup.NewUnverifiedIdentityPredicate(t0, 7)
	expired := cleanup.NewExpiredRecordPredicate(t0).Excluding(unverified)

	counts, err := store.CountExpiredRecords(ctx, expired)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.EmailRecords, "records of doomed identities are counted with their identity")

	n, err := store.DeleteUnverifiedIdentities(ctx, unverified)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.EmailVerifications().GetByTokenHash(ctx, staleRec.TokenHash)
	assert.ErrorIs(t, err, emailverification.ErrRecordNotFound)

	deleted, err := store.DeleteExpiredRecords(ctx, expired)
	require.NoError(t, err)
	assert.Equal(t, counts, deleted)
}

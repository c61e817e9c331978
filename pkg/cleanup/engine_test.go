package cleanup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/emailverification"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/identityverification"
	"github.com/tendant/simple-verification/pkg/inmem"
)

var now = time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)

func seedIdentity(t *testing.T, db *inmem.DB, email string, age time.Duration) identity.Identity {
	t.Helper()
	i, err := db.Identities().Create(context.Background(), identity.CreateParams{Email: email, CreatedAt: now.Add(-age)})
	require.NoError(t, err)
	return i
}

func seedEmailRecord(t *testing.T, db *inmem.DB, ident identity.Identity, created time.Time, ttl time.Duration) emailverification.Record {
	t.Helper()
	tok, _, err := expiringtoken.New(expiringtoken.KindEmail, ident.Email, ttl, created)
	require.NoError(t, err)
	rec := emailverification.Record{Token: tok, IdentityID: ident.ID}
	_, err = db.EmailVerifications().CreateSuperseding(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func seedIdentityRecord(t *testing.T, db *inmem.DB, ident identity.Identity, created time.Time, ttl time.Duration) identityverification.Record {
	t.Helper()
	tok, _, err := expiringtoken.New(expiringtoken.KindIdentity, ident.Email, ttl, created)
	require.NoError(t, err)
	rec := identityverification.Record{Token: tok, IdentityID: ident.ID, MaxAttempts: 3}
	_, err = db.IdentityVerifications().CreateSuperseding(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func newEngine(store cleanup.Store, opts ...cleanup.Option) *cleanup.Engine {
	opts = append([]cleanup.Option{cleanup.WithNow(func() time.Time { return now })}, opts...)
	return cleanup.NewEngine(store, opts...)
}

func TestPreviewMatchesTrigger(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()

	old := seedIdentity(t, db, "old@example.com", 10*24*time.Hour)
	young := seedIdentity(t, db, "young@example.com", 24*time.Hour)

	seedEmailRecord(t, db, old, now.Add(-2*time.Hour), 15*time.Minute)
	seedEmailRecord(t, db, young, now.Add(-2*time.Hour), 15*time.Minute)
	seedIdentityRecord(t, db, young, now.Add(-48*time.Hour), 24*time.Hour)
	live := seedEmailRecord(t, db, young, now.Add(-time.Minute), 15*time.Minute)

	engine := newEngine(db.Cleanup())

	preview, err := engine.Preview(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), preview.UnverifiedIdentities)
	assert.Equal(t, int64(0), preview.ExpiredEmailRecords, "young's lapsed email record was superseded")
	assert.Equal(t, int64(1), preview.ExpiredIdentityRecords)
	assert.Equal(t, int64(2), preview.Total)

	res, err := engine.Trigger(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, preview.UnverifiedIdentities, res.UnverifiedIdentitiesDeleted)
	assert.Equal(t, preview.ExpiredEmailRecords+preview.ExpiredIdentityRecords, res.ExpiredRecordsDeleted)
	assert.Equal(t, preview.Total, res.Total)

	_, err = db.Identities().GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	_, err = db.Identities().GetByID(ctx, young.ID)
	assert.NoError(t, err)
	_, err = db.EmailVerifications().GetByTokenHash(ctx, live.TokenHash)
	assert.NoError(t, err, "valid records survive")

	t.Run("SecondSweepDeletesNothing", func(t *testing.T) {
		res, err := engine.Trigger(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, res.Total)
		assert.Empty(t, res.Errors)
	})
}

func TestConcurrentTriggersDeleteEachRowOnce(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	for i := 0; i < 50; i++ {
		seedIdentity(t, db, fmt.Sprintf("old-%d@example.com", i), 10*24*time.Hour)
		young := seedIdentity(t, db, fmt.Sprintf("young-%d@example.com", i), time.Hour)
		seedIdentityRecord(t, db, young, now.Add(-48*time.Hour), 24*time.Hour)
	}

	engine := newEngine(db.Cleanup())
	preview, err := engine.Preview(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(100), preview.Total)

	const workers = 8
	results := make([]cleanup.Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = engine.Trigger(ctx, 7)
		}(i)
	}
	wg.Wait()

	var total int64
	for _, res := range results {
		assert.Empty(t, res.Errors)
		total += res.Total
	}
	assert.Equal(t, preview.Total, total)

	after, err := engine.Preview(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, after.Total)
}

func TestUnverifiedIdentityAge(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	seedIdentity(t, db, "ten@example.com", 10*24*time.Hour)
	seedIdentity(t, db, "one@example.com", 24*time.Hour)

	engine := newEngine(db.Cleanup())

	preview, err := engine.Preview(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), preview.UnverifiedIdentities)

	n, err := engine.CleanUnverifiedIdentities(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.Identities().GetByEmail(ctx, "one@example.com")
	assert.NoError(t, err)
}

func TestVerifiedIdentitiesAreKept(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	ident := seedIdentity(t, db, "verified@example.com", 30*24*time.Hour)
	rec := seedEmailRecord(t, db, ident, now.Add(-time.Minute), time.Hour)
	require.NoError(t, db.EmailVerifications().MarkVerified(ctx, rec.ID, ident.ID, now))

	n, err := newEngine(db.Cleanup()).CleanUnverifiedIdentities(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTerminalRecordsAreRetained(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	ident := seedIdentity(t, db, "history@example.com", 30*24*time.Hour)

	first := seedEmailRecord(t, db, ident, now.Add(-3*time.Hour), 15*time.Minute)
	second := seedEmailRecord(t, db, ident, now.Add(-2*time.Hour), 15*time.Minute)
	last := seedEmailRecord(t, db, ident, now.Add(-time.Hour), 2*time.Hour)
	require.NoError(t, db.EmailVerifications().MarkVerified(ctx, last.ID, ident.ID, now.Add(-30*time.Minute)))

	res := newEngine(db.Cleanup()).Sweep(ctx)
	require.NoError(t, res.Err())
	assert.Zero(t, res.Total)

	for _, rec := range []emailverification.Record{first, second, last} {
		_, err := db.EmailVerifications().GetByTokenHash(ctx, rec.TokenHash)
		assert.NoError(t, err, "superseded and verified records stay as history")
	}
}

func TestNegativeDaysOld(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(inmem.New().Cleanup())

	_, err := engine.Trigger(ctx, -1)
	require.ErrorIs(t, err, cleanup.ErrInvalidDaysOld)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, err = engine.Preview(ctx, -1)
	assert.ErrorIs(t, err, cleanup.ErrInvalidDaysOld)

	_, err = engine.CleanUnverifiedIdentities(ctx, -1)
	assert.ErrorIs(t, err, cleanup.ErrInvalidDaysOld)
}

// failingStore fails category 1 and delegates the rest
type failingStore struct {
	cleanup.Store
	err      error
	countErr error
}

func (s failingStore) DeleteUnverifiedIdentities(ctx context.Context, p cleanup.UnverifiedIdentityPredicate) (int64, error) {
	return 0, s.err
}

func (s failingStore) CountUnverifiedIdentities(ctx context.Context, p cleanup.UnverifiedIdentityPredicate) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.CountUnverifiedIdentities(ctx, p)
}

func TestCategoryFailureDoesNotStopSweep(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	young := seedIdentity(t, db, "young@example.com", time.Hour)
	seedIdentityRecord(t, db, young, now.Add(-48*time.Hour), 24*time.Hour)
	seedIdentity(t, db, "stale@example.com", 10*24*time.Hour)

	boom := errors.New("connection reset")
	reg := prometheus.NewRegistry()
	metrics := cleanup.NewMetrics(reg)
	engine := newEngine(failingStore{Store: db.Cleanup(), err: boom}, cleanup.WithMetrics(metrics))

	res := engine.Sweep(ctx)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, cleanup.CategoryUnverifiedIdentities, res.Errors[0].Category)
	assert.Equal(t, int64(1), res.Errors[0].Attempted, "the stale identity was targeted")
	assert.ErrorIs(t, res.Err(), boom)
	assert.Equal(t, int64(1), res.ExpiredRecordsDeleted)
	assert.Equal(t, int64(1), res.Total)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Failures.WithLabelValues(string(cleanup.CategoryUnverifiedIdentities))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Deleted.WithLabelValues(string(cleanup.CategoryExpiredRecords))))
}

func TestCategoryFailureWithoutCount(t *testing.T) {
	db := inmem.New()
	seedIdentity(t, db, "stale@example.com", 10*24*time.Hour)

	store := failingStore{Store: db.Cleanup(), err: errors.New("timeout"), countErr: errors.New("timeout")}
	res := newEngine(store).Sweep(context.Background())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(-1), res.Errors[0].Attempted)
}

func TestCleanExpiredRecordsAlone(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	old := seedIdentity(t, db, "old@example.com", 30*24*time.Hour)
	seedEmailRecord(t, db, old, now.Add(-time.Hour), time.Minute)

	counts, err := newEngine(db.Cleanup()).CleanExpiredRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.EmailRecords, "without category 1 nothing is excluded")

	_, err = db.Identities().GetByID(ctx, old.ID)
	assert.NoError(t, err)
}

func TestSweepUsesConfiguredDaysOld(t *testing.T) {
	db := inmem.New()
	seedIdentity(t, db, "five@example.com", 5*24*time.Hour)

	res := newEngine(db.Cleanup(), cleanup.WithDaysOld(3)).Sweep(context.Background())
	assert.Equal(t, int64(1), res.UnverifiedIdentitiesDeleted)
}

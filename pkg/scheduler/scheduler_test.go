package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/inmem"
)

type countingSweeper struct {
	calls atomic.Int32
	res   cleanup.Result
	panic bool
}

func (s *countingSweeper) Sweep(ctx context.Context) cleanup.Result {
	s.calls.Add(1)
	if s.panic {
		panic("store exploded")
	}
	if _, ok := ctx.Deadline(); !ok {
		panic("sweep context has no deadline")
	}
	return s.res
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(&countingSweeper{}, WithSpec("not a cron"))
	assert.Error(t, err)

	_, err = New(&countingSweeper{}, WithSpec("0 0 2 * * *"))
	assert.Error(t, err, "seconds field is not accepted")
}

func TestStartStopIdempotent(t *testing.T) {
	s, err := New(&countingSweeper{})
	require.NoError(t, err)

	assert.False(t, s.Status().IsRunning)
	s.Stop()

	s.Start()
	s.Start()
	st := s.Status()
	assert.True(t, st.IsRunning)
	assert.Equal(t, 1, st.TaskCount, "a second Start adds no entry")
	require.NotNil(t, st.NextRun)
	assert.Equal(t, 2, st.NextRun.Hour())
	assert.Equal(t, "daily at 02:00 (UTC)", st.Schedule)
	assert.Equal(t, "UTC", st.Timezone)

	s.Stop()
	s.Stop()
	st = s.Status()
	assert.False(t, st.IsRunning)
	assert.Zero(t, st.TaskCount)
	assert.Nil(t, st.NextRun)

	s.Start()
	assert.True(t, s.IsRunning(), "restart after stop")
	s.Stop()
}

func TestTriggerNowRecordsLastRun(t *testing.T) {
	sweeper := &countingSweeper{res: cleanup.Result{Total: 3}}
	s, err := New(sweeper, WithTimeout(time.Second))
	require.NoError(t, err)

	res, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, int32(1), sweeper.calls.Load())

	last := s.Status().LastRun
	require.NotNil(t, last)
	assert.True(t, last.Manual)
	assert.Equal(t, int64(3), last.Deleted)
	assert.Empty(t, last.Error)
}

func TestTriggerNowReportsCategoryErrors(t *testing.T) {
	boom := errors.New("boom")
	sweeper := &countingSweeper{res: cleanup.Result{
		Errors: []cleanup.CategoryError{{Category: cleanup.CategoryExpiredRecords, Err: boom}},
	}}
	s, err := New(sweeper)
	require.NoError(t, err)

	_, err = s.TriggerNow(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, s.Status().LastRun.Error, "boom")
}

func TestConcurrentTriggerNow(t *testing.T) {
	ctx := context.Background()
	db := inmem.New()
	for i := 0; i < 40; i++ {
		_, err := db.Identities().Create(ctx, identity.CreateParams{
			Email:     fmt.Sprintf("stale-%d@example.com", i),
			CreatedAt: time.Now().UTC().Add(-10 * 24 * time.Hour),
		})
		require.NoError(t, err)
	}

	engine := cleanup.NewEngine(db.Cleanup())
	preview, err := engine.Preview(ctx, engine.DaysOld())
	require.NoError(t, err)
	require.Equal(t, int64(40), preview.Total)

	s, err := New(engine, WithTimeout(5*time.Second))
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.TriggerNow(ctx)
			assert.NoError(t, err)
			_ = s.Status()
			mu.Lock()
			total += res.Total
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, preview.Total, total)
	require.NotNil(t, s.Status().LastRun)
}

func TestRunSweepRecoversPanic(t *testing.T) {
	s, err := New(&countingSweeper{panic: true})
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.runSweep(false) })
	last := s.Status().LastRun
	require.NotNil(t, last)
	assert.False(t, last.Manual)
	assert.Contains(t, last.Error, "store exploded")
}

func TestTriggerNowCancelledContext(t *testing.T) {
	sweeper := &countingSweeper{}
	s, err := New(sweeper)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.TriggerNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sweeper.calls.Load())
}

func TestDescribe(t *testing.T) {
	madrid, err := LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	assert.Equal(t, "daily at 02:00 (UTC)", Describe("0 2 * * *", time.UTC))
	assert.Equal(t, "daily at 23:30 (Europe/Madrid)", Describe("30 23 * * *", madrid))
	assert.Equal(t, "hourly at minute 15 (UTC)", Describe("15 * * * *", nil))
	assert.Equal(t, "0 2 * * 1", Describe("0 2 * * 1", time.UTC))
	assert.Equal(t, "@daily", Describe("@daily", time.UTC))

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, err := New(&countingSweeper{res: cleanup.Result{Total: 4}}, WithMetrics(m))
	require.NoError(t, err)

	s.Start()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Running))

	_, err = s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.LastRunDeleted))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LastRunFailed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues("manual")))
	assert.Positive(t, testutil.ToFloat64(m.LastRunTime))

	s.Stop()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Running))
}

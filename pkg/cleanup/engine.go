package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Result summarizes one cleanup run
type Result struct {
	UnverifiedIdentitiesDeleted int64
	ExpiredRecordsDeleted       int64
	Total                       int64
	Errors                      []CategoryError
	StartedAt                   time.Time
	FinishedAt                  time.Time
}

// Err joins every category failure, or returns nil
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Duration of the run
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Preview counts what Trigger would delete with the same threshold
type Preview struct {
	UnverifiedIdentities   int64
	ExpiredEmailRecords    int64
	ExpiredIdentityRecords int64
	Total                  int64
	DaysOld                int
	CreatedBefore          time.Time
}

// Engine removes stale identities and expired verification records
type Engine struct {
	store   Store
	daysOld int
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Engine)

// WithDaysOld sets the threshold used by Sweep
func WithDaysOld(days int) Option {
	return func(e *Engine) {
		if days >= 0 {
			e.daysOld = days
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithNow overrides the clock
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		daysOld: DefaultDaysOld,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DaysOld returns the threshold Sweep uses
func (e *Engine) DaysOld() int {
	return e.daysOld
}

// Sweep runs both categories with the configured threshold
func (e *Engine) Sweep(ctx context.Context) Result {
	res, _ := e.Trigger(ctx, e.daysOld)
	return res
}

// Trigger runs both categories. A failing category does not stop the other;
// failures are collected in Result.Errors. The error return is only set for
// an invalid threshold.
func (e *Engine) Trigger(ctx context.Context, daysOld int) (Result, error) {
	if daysOld < 0 {
		return Result{}, ErrInvalidDaysOld.WithDetail("days_old", daysOld)
	}

	now := e.now()
	res := Result{StartedAt: now}
	unverified := NewUnverifiedIdentityPredicate(now, daysOld)
	expired := NewExpiredRecordPredicate(now).Excluding(unverified)

	var failed CategoryError
	if n, err := e.deleteUnverified(ctx, unverified); errors.As(err, &failed) {
		res.Errors = append(res.Errors, failed)
	} else {
		res.UnverifiedIdentitiesDeleted = n
	}

	if counts, err := e.deleteExpired(ctx, expired); errors.As(err, &failed) {
		res.Errors = append(res.Errors, failed)
	} else {
		res.ExpiredRecordsDeleted = counts.Total()
	}

	res.Total = res.UnverifiedIdentitiesDeleted + res.ExpiredRecordsDeleted
	res.FinishedAt = e.now()
	e.metrics.observeSweep(res.Duration())

	slog.Info("Cleanup finished",
		"days_old", daysOld,
		"unverified_identities", res.UnverifiedIdentitiesDeleted,
		"expired_records", res.ExpiredRecordsDeleted,
		"total", res.Total,
		"errors", len(res.Errors),
		"duration", res.Duration())
	return res, nil
}

// Preview counts, without deleting, what Trigger(daysOld) would remove now
func (e *Engine) Preview(ctx context.Context, daysOld int) (Preview, error) {
	if daysOld < 0 {
		return Preview{}, ErrInvalidDaysOld.WithDetail("days_old", daysOld)
	}

	now := e.now()
	unverified := NewUnverifiedIdentityPredicate(now, daysOld)
	expired := NewExpiredRecordPredicate(now).Excluding(unverified)

	identities, err := e.store.CountUnverifiedIdentities(ctx, unverified)
	if err != nil {
		slog.Error("Failed to count cleanup candidates", "category", CategoryUnverifiedIdentities, "predicate", unverified.String(), "error", err)
		return Preview{}, err
	}
	records, err := e.store.CountExpiredRecords(ctx, expired)
	if err != nil {
		slog.Error("Failed to count cleanup candidates", "category", CategoryExpiredRecords, "predicate", expired.String(), "error", err)
		return Preview{}, err
	}

	return Preview{
		UnverifiedIdentities:   identities,
		ExpiredEmailRecords:    records.EmailRecords,
		ExpiredIdentityRecords: records.IdentityRecords,
		Total:                  identities + records.Total(),
		DaysOld:                daysOld,
		CreatedBefore:          unverified.CreatedBefore,
	}, nil
}

// CleanUnverifiedIdentities runs category 1 alone
func (e *Engine) CleanUnverifiedIdentities(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 0 {
		return 0, ErrInvalidDaysOld.WithDetail("days_old", daysOld)
	}
	return e.deleteUnverified(ctx, NewUnverifiedIdentityPredicate(e.now(), daysOld))
}

// CleanExpiredRecords runs category 2 alone
func (e *Engine) CleanExpiredRecords(ctx context.Context) (ExpiredCounts, error) {
	return e.deleteExpired(ctx, NewExpiredRecordPredicate(e.now()))
}

func (e *Engine) deleteUnverified(ctx context.Context, p UnverifiedIdentityPredicate) (int64, error) {
	n, err := e.store.DeleteUnverifiedIdentities(ctx, p)
	if err != nil {
		attempted, cerr := e.store.CountUnverifiedIdentities(ctx, p)
		return 0, e.categoryFailed(CategoryUnverifiedIdentities, p, attempted, cerr, err)
	}
	e.metrics.addDeleted(CategoryUnverifiedIdentities, n)
	return n, nil
}

func (e *Engine) deleteExpired(ctx context.Context, p ExpiredRecordPredicate) (ExpiredCounts, error) {
	counts, err := e.store.DeleteExpiredRecords(ctx, p)
	if err != nil {
		attempted, cerr := e.store.CountExpiredRecords(ctx, p)
		return ExpiredCounts{}, e.categoryFailed(CategoryExpiredRecords, p, attempted.Total(), cerr, err)
	}
	e.metrics.addDeleted(CategoryExpiredRecords, counts.Total())
	return counts, nil
}

// categoryFailed logs a failed delete with the row count it targeted.
// countErr is the outcome of recounting with the same predicate.
func (e *Engine) categoryFailed(category Category, p fmt.Stringer, attempted int64, countErr, err error) CategoryError {
	if countErr != nil {
		attempted = -1
	}
	e.metrics.incFailure(category)
	slog.Error("Cleanup category failed",
		"category", category,
		"predicate", p.String(),
		"attempted", attempted,
		"error", err)
	return CategoryError{Category: category, Attempted: attempted, Err: err}
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tendant/simple-verification/pkg/cleanup"
)

const (
	// DefaultSpec runs the sweep daily at 02:00
	DefaultSpec     = "0 2 * * *"
	DefaultTimezone = "UTC"
	DefaultTimeout  = 5 * time.Minute
)

// Sweeper is the work the scheduler fires. *cleanup.Engine satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) cleanup.Result
}

// RunSummary describes the most recent sweep, scheduled or manual
type RunSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Deleted    int64     `json:"deleted"`
	Error      string    `json:"error,omitempty"`
	Manual     bool      `json:"manual"`
}

// Status is a snapshot of the scheduler
type Status struct {
	IsRunning bool        `json:"is_running"`
	TaskCount int         `json:"task_count"`
	Schedule  string      `json:"schedule"`
	Timezone  string      `json:"timezone"`
	NextRun   *time.Time  `json:"next_run,omitempty"`
	LastRun   *RunSummary `json:"last_run,omitempty"`
}

// Scheduler fires the cleanup sweep on a cron schedule
type Scheduler struct {
	sweeper  Sweeper
	spec     string
	location *time.Location
	timeout  time.Duration
	logger   cron.Logger
	schedule cron.Schedule
	metrics  *Metrics

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	running bool
	lastRun *RunSummary
}

type Option func(*Scheduler)

// WithSpec sets the 5-field cron expression
func WithSpec(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// WithLocation sets the timezone the cron expression is evaluated in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithTimeout bounds a single sweep
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics publishes the scheduler gauges
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New validates the schedule and returns a stopped scheduler
func New(sweeper Sweeper, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		sweeper:  sweeper,
		spec:     DefaultSpec,
		location: time.UTC,
		timeout:  DefaultTimeout,
		logger:   slogLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	schedule, err := cron.ParseStandard(s.spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", s.spec, err)
	}
	s.schedule = schedule
	return s, nil
}

// LoadLocation resolves a timezone name, defaulting to UTC when empty
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup timezone %q: %w", name, err)
	}
	return loc, nil
}

// Start registers the sweep and starts firing. Calling Start on a running
// scheduler logs a warning and does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Warn("Cleanup scheduler already running", "schedule", s.spec)
		return
	}

	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(s.logger),
		cron.WithChain(cron.Recover(s.logger), cron.SkipIfStillRunning(s.logger)),
	)
	id := c.Schedule(s.schedule, cron.FuncJob(func() { s.runSweep(false) }))
	c.Start()

	s.cron = c
	s.entryID = id
	s.running = true
	s.metrics.setRunning(true)
	slog.Info("Cleanup scheduler started", "schedule", s.spec, "timezone", s.location.String(),
		"next_run", s.schedule.Next(time.Now().In(s.location)))
}

// Stop cancels future firings. A sweep already in progress is left to finish
// on its own. Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Remove(s.entryID)
	s.cron.Stop()
	s.cron = nil
	s.entryID = 0
	s.running = false
	s.metrics.setRunning(false)
	slog.Info("Cleanup scheduler stopped")
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the schedule and the last run
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		IsRunning: s.running,
		Schedule:  Describe(s.spec, s.location),
		Timezone:  s.location.String(),
	}
	if s.running {
		st.TaskCount = len(s.cron.Entries())
		next := s.schedule.Next(time.Now().In(s.location))
		st.NextRun = &next
	}
	if s.lastRun != nil {
		last := *s.lastRun
		st.LastRun = &last
	}
	return st
}

// TriggerNow runs the sweep immediately with the same body the schedule
// uses. It ignores ctx cancellation once started, like a scheduled run.
func (s *Scheduler) TriggerNow(ctx context.Context) (cleanup.Result, error) {
	if err := ctx.Err(); err != nil {
		return cleanup.Result{}, err
	}
	res := s.runSweep(true)
	return res, res.Err()
}

// runSweep is the job body. It never panics and never returns an error to
// cron; the outcome is logged and kept as the last run.
func (s *Scheduler) runSweep(manual bool) (res cleanup.Result) {
	started := time.Now().UTC()
	summary := RunSummary{StartedAt: started, Manual: manual}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Cleanup sweep panicked", "panic", r)
			summary.Error = fmt.Sprintf("panic: %v", r)
			res = cleanup.Result{StartedAt: started}
		}
		summary.FinishedAt = time.Now().UTC()
		s.mu.Lock()
		s.lastRun = &summary
		s.mu.Unlock()
		s.metrics.observeRun(summary)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res = s.sweeper.Sweep(ctx)
	summary.Deleted = res.Total
	if err := res.Err(); err != nil {
		summary.Error = err.Error()
		slog.Error("Cleanup sweep finished with errors", "manual", manual, "deleted", res.Total, "error", err)
	}
	return res
}

// Describe renders simple daily and hourly specs in words and returns any
// other spec unchanged.
func Describe(spec string, loc *time.Location) string {
	tz := "UTC"
	if loc != nil {
		tz = loc.String()
	}
	fields := strings.Fields(spec)
	if len(fields) != 5 || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return spec
	}
	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return spec
	}
	if fields[1] == "*" {
		return fmt.Sprintf("hourly at minute %02d (%s)", minute, tz)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return spec
	}
	return fmt.Sprintf("daily at %02d:%02d (%s)", hour, minute, tz)
}

// slogLogger adapts slog to cron.Logger
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

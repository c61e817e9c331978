package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the scheduler state as gauges
type Metrics struct {
	Running        prometheus.Gauge
	LastRunTime    prometheus.Gauge
	LastRunDeleted prometheus.Gauge
	LastRunFailed  prometheus.Gauge
	Runs           *prometheus.CounterVec
}

// NewMetrics registers the scheduler metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Running: f.NewGauge(prometheus.GaugeOpts{
			Name: "verification_cleanup_scheduler_running",
			Help: "1 while the cleanup schedule is active",
		}),
		LastRunTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "verification_cleanup_last_run_timestamp_seconds",
			Help: "Unix time the last sweep finished",
		}),
		LastRunDeleted: f.NewGauge(prometheus.GaugeOpts{
			Name: "verification_cleanup_last_run_deleted",
			Help: "Rows deleted by the last sweep",
		}),
		LastRunFailed: f.NewGauge(prometheus.GaugeOpts{
			Name: "verification_cleanup_last_run_failed",
			Help: "1 if the last sweep reported an error",
		}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_cleanup_runs_total",
			Help: "Sweeps run by the scheduler, by trigger",
		}, []string{"trigger"}),
	}
}

func (m *Metrics) setRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Running.Set(1)
	} else {
		m.Running.Set(0)
	}
}

func (m *Metrics) observeRun(summary RunSummary) {
	if m == nil {
		return
	}
	trigger := "schedule"
	if summary.Manual {
		trigger = "manual"
	}
	m.Runs.WithLabelValues(trigger).Inc()
	m.LastRunTime.Set(float64(summary.FinishedAt.UnixNano()) / float64(time.Second))
	m.LastRunDeleted.Set(float64(summary.Deleted))
	if summary.Error != "" {
		m.LastRunFailed.Set(1)
	} else {
		m.LastRunFailed.Set(0)
	}
}

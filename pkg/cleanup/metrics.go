package cleanup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for cleanup sweeps
type Metrics struct {
	// Rows deleted by category
	Deleted *prometheus.CounterVec

	// Category failures
	Failures *prometheus.CounterVec

	SweepDuration prometheus.Histogram
}

// NewMetrics registers the cleanup metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Deleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_cleanup_deleted_total",
			Help: "Total rows removed by cleanup, by category",
		}, []string{"category"}),

		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_cleanup_failures_total",
			Help: "Total cleanup category failures",
		}, []string{"category"}),

		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verification_cleanup_sweep_duration_seconds",
			Help:    "Duration of a full cleanup sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

func (m *Metrics) addDeleted(category Category, n int64) {
	if m != nil && n > 0 {
		m.Deleted.WithLabelValues(string(category)).Add(float64(n))
	}
}

func (m *Metrics) incFailure(category Category) {
	if m != nil {
		m.Failures.WithLabelValues(string(category)).Inc()
	}
}

func (m *Metrics) observeSweep(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}

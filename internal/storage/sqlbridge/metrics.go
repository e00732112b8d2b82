package sqlbridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records bridge operation counts and latencies.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the bridge collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenauth_db_operations_total",
				Help: "Total number of database bridge operations",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenauth_db_operation_duration_seconds",
				Help:    "Database bridge operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

func (m *Metrics) observe(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

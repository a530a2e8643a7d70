// Package metrics holds the Prometheus collectors for registry operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for one store.
type Metrics struct {
	// Operation metrics
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec

	// Row metrics
	RowsWritten prometheus.Counter
	RowsUpdated prometheus.Counter
	RowsCleared prometheus.Counter
	RowsExpired prometheus.Counter
	RowsEvicted prometheus.Counter

	// Schema metrics
	ColumnsAdded prometheus.Counter
}

// New creates the collectors and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"op", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_rows_written_total",
			Help: "Rows inserted or merged by deposits",
		}),
		RowsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_rows_updated_total",
			Help: "Rows changed by value updates",
		}),
		RowsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_rows_cleared_total",
			Help: "Rows removed by explicit clears",
		}),
		RowsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_rows_expired_total",
			Help: "Rows removed by the expiration sweep",
		}),
		RowsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_rows_evicted_total",
			Help: "Rows removed to honour the size limit",
		}),
		ColumnsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_columns_added_total",
			Help: "Columns added or widened by schema evolution",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Operations, m.Duration,
			m.RowsWritten, m.RowsUpdated, m.RowsCleared, m.RowsExpired, m.RowsEvicted,
			m.ColumnsAdded,
		)
	}
	return m
}

// Observe records one operation outcome and its duration since start.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(op, status).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Package observability exports connector activity as Prometheus metrics
// and OpenTelemetry spans.
package observability

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skryldev/sql-connector/db"
)

const namespace = "sqlconnector"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// QueryMetrics records every statement run through the db package. Plug it
// in with db.NewMetricsHook.
type QueryMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewQueryMetrics registers the query collectors with reg.
func NewQueryMetrics(reg prometheus.Registerer) *QueryMetrics {
	m := &QueryMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of SQL statements executed",
			},
			[]string{"statement", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "SQL statement duration in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"statement"},
		),
	}
	reg.MustRegister(m.total, m.duration)
	return m
}

// RecordQuery implements db.MetricsCollector.
func (m *QueryMetrics) RecordQuery(query string, d time.Duration, success bool) {
	stmt := StatementKind(query)
	m.total.WithLabelValues(stmt, status(success)).Inc()
	m.duration.WithLabelValues(stmt).Observe(d.Seconds())
}

// StatementKind returns the leading SQL verb of query in lower case, or
// "other".
func StatementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "other"
	}
	switch verb := strings.ToLower(fields[0]); verb {
	case "select", "insert", "update", "delete", "begin", "commit", "rollback":
		return verb
	}
	return "other"
}

// OperationMetrics records connector operations. It satisfies
// connector.OperationObserver.
type OperationMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewOperationMetrics registers the operation collectors with reg.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	m := &OperationMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of connector operations",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Connector operation duration in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.total, m.duration)
	return m
}

// ObserveOperation counts one finished operation.
func (m *OperationMetrics) ObserveOperation(name string, d time.Duration, err error) {
	m.total.WithLabelValues(name, status(err == nil)).Inc()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

var _ db.MetricsCollector = (*QueryMetrics)(nil)

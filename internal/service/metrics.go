package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
// Pass to components that need to record metrics.
type Metrics struct {
	ChecksTotal        *prometheus.CounterVec
	EvalDuration       prometheus.Histogram
	AuditWriteFailures prometheus.Counter
	AuditDropsTotal    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ChecksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "checks_total",
				Help:      "Total permission checks evaluated",
			},
			[]string{"result"}, // result=allow/deny
		),
		EvalDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "aegis",
				Name:      "evaluation_duration_seconds",
				Help:      "Policy evaluation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		AuditWriteFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "audit_write_failures_total",
				Help:      "Total audit entries that failed to persist",
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "audit_drops_total",
				Help:      "Total audit entries dropped due to backpressure",
			},
		),
	}
}

// Package metrics exposes Prometheus instrumentation for the auth subsystem.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vocabapp"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// AuthMetrics counts auth operations by outcome and records their latency.
type AuthMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	sessionsSwept *prometheus.CounterVec
}

// NewAuthMetrics registers the collectors with reg. A nil reg leaves them unregistered,
// which is what tests use.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "operation_duration_seconds",
			Help:      "Latency of auth operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sessionsSwept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Session rows deactivated or purged by the sweeper.",
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.sessionsSwept)
	}
	return m
}

// Observe records one finished operation.
func (m *AuthMetrics) Observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// SessionsSwept adds n to the sweeper counter for action ("deactivated" or "purged").
func (m *AuthMetrics) SessionsSwept(action string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.WithLabelValues(action).Add(float64(n))
}

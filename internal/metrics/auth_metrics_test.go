package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuthMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuthMetrics(reg)

	m.Observe("refresh", OutcomeSuccess, time.Now())
	m.Observe("refresh", OutcomeRejected, time.Now())
	m.Observe("refresh", OutcomeRejected, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("refresh", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("refresh", OutcomeRejected)))
}

func TestAuthMetrics_SessionsSwept(t *testing.T) {
	m := NewAuthMetrics(nil)
	m.SessionsSwept("purged", 3)
	m.SessionsSwept("purged", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessionsSwept.WithLabelValues("purged")))
}

func TestAuthMetrics_NilSafe(t *testing.T) {
	var m *AuthMetrics
	assert.NotPanics(t, func() {
		m.Observe("login", OutcomeError, time.Now())
		m.SessionsSwept("deactivated", 1)
	})
}

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEscalation(2)
	m.RecordEscalation(2)
	m.RecordEscalation(3)
	m.RecordSkip("no_supervisor")
	m.RecordFailure()
	m.ObserveSweep(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.escalations.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalations.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalationSkips.WithLabelValues("no_supervisor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalationFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/x", "GET", 200, time.Millisecond)
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.RecordEscalation(2)
		m.RecordSkip("stale")
		m.RecordFailure()
		m.ObserveSweep(time.Second)
	})
}

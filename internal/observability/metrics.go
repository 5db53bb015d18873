package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	errors             *prometheus.CounterVec
	escalations        *prometheus.CounterVec
	escalationSkips    *prometheus.CounterVec
	escalationFailures prometheus.Counter
	sweepDuration      prometheus.Histogram
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by route and error code.",
		}, []string{"route", "method", "code"}),
		escalations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Tickets escalated by the sweep, by target level.",
		}, []string{"to_level"}),
		escalationSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_skips_total",
			Help: "Breached tickets the sweep left in place, by reason.",
		}, []string{"reason"}),
		escalationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_failures_total",
			Help: "Per-ticket escalation errors.",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Wall time of one escalation sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordEscalation counts one ticket moved to level.
func (m *Metrics) RecordEscalation(level int) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordSkip counts a breached ticket left untouched.
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.escalationSkips.WithLabelValues(reason).Inc()
}

// RecordFailure counts a per-ticket sweep error.
func (m *Metrics) RecordFailure() {
	if m == nil {
		return
	}
	m.escalationFailures.Inc()
}

// ObserveSweep records how long a sweep took.
func (m *Metrics) ObserveSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

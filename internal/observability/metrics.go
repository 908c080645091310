package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics is a no-op so that
// components can be built without instrumentation in tests.
type Metrics struct {
	Registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	fallbacks        *prometheus.CounterVec
	keywordOverrides prometheus.Counter
	saves            *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Error responses by domain error code",
		}, []string{"path", "method", "code"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "pipeline",
			Name:      "fallbacks_total",
			Help:      "Safe-default substitutions by stage and reason",
		}, []string{"stage", "reason"}),
		keywordOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "router",
			Name:      "keyword_overrides_total",
			Help:      "Routing decisions where keyword scoring replaced the model vote",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "store",
			Name:      "saves_total",
			Help:      "Ticket save outcomes",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(m.requests, m.requestLatency, m.errors, m.stageLatency, m.fallbacks, m.keywordOverrides, m.saves)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordFallback counts a safe-default substitution.
func (m *Metrics) RecordFallback(stage, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(stage, reason).Inc()
}

// RecordKeywordOverride counts a routing override.
func (m *Metrics) RecordKeywordOverride() {
	if m == nil {
		return
	}
	m.keywordOverrides.Inc()
}

// RecordSave counts a save outcome: saved, retried, queued or failed.
func (m *Metrics) RecordSave(outcome string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
}

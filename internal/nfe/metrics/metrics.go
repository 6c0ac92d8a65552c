package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document lookups.
type Metrics struct {
	// Upstream round trips by endpoint ("xml", "data") and status code
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Document cache hits/misses by backend
	CacheLookups *prometheus.CounterVec

	// Lookup outcomes: extracted, absent, invalid_input, malformed, upstream_error, ...
	LookupOutcome *prometheus.CounterVec

	// Overall lookup latency including cache and extraction
	LookupLatency prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg; tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frota_upstream_requests_total",
			Help: "Requests sent to the document service by endpoint and status code",
		}, []string{"endpoint", "status"}),

		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frota_upstream_request_duration_seconds",
			Help:    "Duration of document service round trips by endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frota_document_cache_lookups_total",
			Help: "Document cache lookups by backend and result",
		}, []string{"backend", "result"}),

		LookupOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frota_lookup_outcomes_total",
			Help: "Document lookups by outcome",
		}, []string{"outcome"}),

		LookupLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "frota_lookup_duration_seconds",
			Help:    "Duration of a full document lookup including fetch and extraction",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveUpstream records one round trip to the document service.
// A status of 0 means the request failed before a response arrived.
func (m *Metrics) ObserveUpstream(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.UpstreamRequests.WithLabelValues(endpoint, label).Inc()
	m.UpstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordCacheHit records a document cache hit.
func (m *Metrics) RecordCacheHit(backend string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(backend, "hit").Inc()
	}
}

// RecordCacheMiss records a document cache miss.
func (m *Metrics) RecordCacheMiss(backend string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(backend, "miss").Inc()
	}
}

// IncrementOutcome records a lookup outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.LookupOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveLookupLatency records the total lookup duration.
func (m *Metrics) ObserveLookupLatency(d time.Duration) {
	if m != nil {
		m.LookupLatency.Observe(d.Seconds())
	}
}

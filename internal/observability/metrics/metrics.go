// Package metrics provides Prometheus instrumentation for MetaGuard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Analysis metrics
	analysisTotal *prometheus.CounterVec

	// Evidence lookup metrics
	lookupTotal *prometheus.CounterVec

	// Reputation cache metrics
	cacheEventsTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	analysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_analysis_total",
			Help: "Total number of transaction analyses by resulting risk level",
		},
		[]string{"risk"},
	)

	lookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_lookup_total",
			Help: "Total number of external evidence lookups",
		},
		[]string{"source", "status"},
	)

	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_cache_events_total",
			Help: "Reputation cache hits and misses per component",
		},
		[]string{"component", "event"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}

// RecordAnalysis records one completed analysis with its risk verdict.
func RecordAnalysis(risk string) {
	if !enabled || analysisTotal == nil {
		return
	}
	analysisTotal.WithLabelValues(risk).Inc()
}

// RecordLookup records one external evidence lookup.
func RecordLookup(source, status string) {
	if !enabled || lookupTotal == nil {
		return
	}
	lookupTotal.WithLabelValues(source, status).Inc()
}

// RecordCacheEvent records a cache hit or miss for a lookup component.
func RecordCacheEvent(component, event string) {
	if !enabled || cacheEventsTotal == nil {
		return
	}
	cacheEventsTotal.WithLabelValues(component, event).Inc()
}

// Package metrics holds the Prometheus collectors for cover resolution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcovers_cache_lookups_total",
			Help: "Cover cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "shared"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookcovers_cache_entries",
			Help: "Current number of cached cover descriptors",
		},
	)

	CacheInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookcovers_cache_inflight",
			Help: "Cover resolutions currently in flight",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcovers_cache_evictions_total",
			Help: "Cached cover descriptors evicted to stay within capacity",
		},
	)

	// Resolution
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcovers_resolutions_total",
			Help: "Completed cover resolutions by outcome and match tier",
		},
		[]string{"kind", "tier"},
	)

	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookcovers_resolution_duration_seconds",
			Help:    "Time to resolve a cover on a cache miss",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
	)

	// Providers
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcovers_provider_requests_total",
			Help: "Bibliographic provider requests by provider, strategy and result",
		},
		[]string{"provider", "strategy", "result"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookcovers_provider_request_duration_seconds",
			Help:    "Bibliographic provider request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookcovers_provider_circuit_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Visual pipeline
	VisualStageResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcovers_visual_stage_results_total",
			Help: "Visual verification outcomes by stage",
		},
		[]string{"stage", "result"}, // "advanced", "dropped", "error"
	)
)

// RecordProviderRequest records the outcome and latency of one provider call.
func RecordProviderRequest(provider, strategy, result string, d time.Duration) {
	ProviderRequests.WithLabelValues(provider, strategy, result).Inc()
	ProviderRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordResolution records a finished cache-miss resolution.
func RecordResolution(kind, tier string, d time.Duration) {
	Resolutions.WithLabelValues(kind, tier).Inc()
	ResolutionDuration.Observe(d.Seconds())
}

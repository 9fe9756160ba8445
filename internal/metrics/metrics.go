// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestCount counts HTTP requests by method, route and status
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldstreak_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration observes handler latency
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goldstreak_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// CacheLookups counts cached content lookups; result is "hit" or "miss"
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldstreak_content_cache_lookups_total",
			Help: "Cached content lookups by content type and result",
		},
		[]string{"type", "result"},
	)

	// Generations counts text generation calls; outcome is "ok", "fallback" or "error"
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldstreak_content_generations_total",
			Help: "Text generation calls by content type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// BadgesAwarded counts badge ownership records created
	BadgesAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goldstreak_badges_awarded_total",
			Help: "Badges newly awarded to users",
		},
	)
)

// Register adds all collectors to the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(RequestCount, RequestDuration, CacheLookups, Generations, BadgesAwarded)
}

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetwise_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_rate_limit_requests_total",
			Help: "Requests checked by the rate limiter",
		},
		[]string{"backend"},
	)
	RateLimitBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_rate_limit_blocked_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"backend"},
	)
	AdvisorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_advisor_calls_total",
			Help: "Budget advisor model calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	AdvisorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetwise_advisor_duration_seconds",
			Help:    "Budget advisor model call latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
	SnapshotsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budgetwise_snapshots_published_total",
			Help: "Full transaction snapshots pushed to subscribers",
		},
	)
	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "budgetwise_stream_subscribers",
			Help: "Open snapshot subscriptions",
		},
	)
	ExportEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_export_events_total",
			Help: "Transaction events handled by the export worker",
		},
		[]string{"action", "outcome"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_cache_lookups_total",
			Help: "In-process cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)
	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetwise_cache_evictions_total",
			Help: "Entries evicted to stay within cache capacity",
		},
		[]string{"cache"},
	)
	SuspiciousRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budgetwise_suspicious_requests_total",
			Help: "Requests matching a known attack pattern",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		RateLimitRequests,
		RateLimitBlocked,
		AdvisorCalls,
		AdvisorDuration,
		SnapshotsPublished,
		StreamSubscribers,
		ExportEvents,
		CacheLookups,
		CacheEvictions,
		SuspiciousRequests,
	)
}

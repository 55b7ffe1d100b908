// Package metrics provides Prometheus metrics for headlines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteRequestsTotal counts headline API requests by outcome.
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "headlines",
			Name:      "remote_requests_total",
			Help:      "Total number of remote page requests",
		},
		[]string{"source", "outcome"},
	)

	// RemoteRequestDuration measures remote page request latency.
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "headlines",
			Name:      "remote_request_duration_seconds",
			Help:      "Duration of remote page requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// PageLoadsTotal counts page loads applied by the feed engine.
	PageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "headlines",
			Name:      "page_loads_total",
			Help:      "Total number of page loads by outcome",
		},
		[]string{"outcome"},
	)

	// StaleResultsTotal counts load results dropped because their session
	// generation was superseded.
	StaleResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "headlines",
			Name:      "stale_results_total",
			Help:      "Total number of superseded load results discarded",
		},
	)

	// FavoriteWritesTotal counts favorites store writes.
	FavoriteWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "headlines",
			Name:      "favorite_writes_total",
			Help:      "Total number of favorite writes by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// CacheLookupsTotal counts page cache lookups.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "headlines",
			Name:      "cache_lookups_total",
			Help:      "Total number of page cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordRemote records one remote request.
func RecordRemote(source, outcome string, seconds float64) {
	RemoteRequestsTotal.WithLabelValues(source, outcome).Inc()
	RemoteRequestDuration.WithLabelValues(source).Observe(seconds)
}

// RecordPageLoad records a page load applied to a session.
func RecordPageLoad(outcome string) {
	PageLoadsTotal.WithLabelValues(outcome).Inc()
}

// RecordStale records a discarded stale result.
func RecordStale() {
	StaleResultsTotal.Inc()
}

// RecordFavoriteWrite records a favorites store write.
func RecordFavoriteWrite(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	FavoriteWritesTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCache records a cache hit or miss.
func RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// Package metrics holds the Prometheus collectors of the recommendation
// service. Collectors register with the default registry on import and are
// exported at /metrics.
//
//	recommendations_total{source}                 counter
//	recommendation_cache_total{outcome}           counter   hit, miss, error
//	recommendation_duration_seconds{source}       histogram
//	recommendation_errors_total{stage}            counter
//	popularity_refresh_total{result}              counter   ok, error
//	popularity_snapshot_ads                       gauge
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	// Recommendations counts computed (not cached) results by path.
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendation results computed, by source path",
		},
		[]string{"source"},
	)

	// CacheLookups counts result cache lookups by outcome.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_cache_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// Duration observes end-to-end computation time by path.
	Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Time spent computing a recommendation result",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	// Errors counts failed computations by pipeline stage.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_errors_total",
			Help: "Recommendation failures by pipeline stage",
		},
		[]string{"stage"},
	)

	// PopularityRefreshes counts scheduled popularity snapshot refreshes.
	PopularityRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularity_refresh_total",
			Help: "Popularity snapshot refreshes by result",
		},
		[]string{"result"},
	)

	// PopularitySnapshotAds is the number of ads in the current snapshot.
	PopularitySnapshotAds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popularity_snapshot_ads",
			Help: "Ads with at least one view in the current popularity snapshot",
		},
	)
)

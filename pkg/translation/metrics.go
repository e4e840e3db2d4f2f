package translation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "babel_translation_cache_lookups_total",
			Help: "Total number of translation cache lookups by result",
		},
		[]string{"result"},
	)

	// Coordinator metrics
	ensureCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "babel_translation_ensure_total",
			Help: "Total number of ensure calls by outcome",
		},
		[]string{"outcome"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "babel_translation_fetches_total",
			Help: "Total number of translation fetches by status",
		},
		[]string{"status"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "babel_translation_fetch_duration_seconds",
			Help:    "Duration of translation fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"status"},
	)

	inFlightFetches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "babel_translation_inflight_fetches",
			Help: "Number of translation fetches currently in flight",
		},
	)

	// Event bus metrics
	eventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "babel_translation_events_dropped_total",
			Help: "Total number of events dropped because a subscriber buffer was full",
		},
		[]string{"kind"},
	)
)

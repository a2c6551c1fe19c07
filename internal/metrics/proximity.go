package metrics

import "github.com/prometheus/client_golang/prometheus"

// Proximity subsystem Prometheus metrics.
var (
	PositionPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proximity",
			Name:      "position_publishes_total",
			Help:      "Total position publish attempts",
		},
		[]string{"result"}, // "ok" / "error" / "skipped" / "denied"
	)

	ProximityQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proximity",
			Name:      "queries_total",
			Help:      "Total proximity radius queries",
		},
		[]string{"result"}, // "ok" / "error"
	)

	StaleResultsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proximity",
			Name:      "stale_results_dropped_total",
			Help:      "Query completions discarded by the generation-freshness rule",
		},
	)

	ActiveWatches = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "proximity",
			Name:      "active_watches",
			Help:      "Currently active live subscriptions",
		},
		[]string{"kind"}, // "area" / "targeted"
	)

	VocabularyRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proximity",
			Name:      "vocabulary_refresh_total",
			Help:      "Vocabulary refresh attempts",
		},
		[]string{"category", "result"}, // "ok" / "error"
	)
)

var proximityMetricsRegistered bool

// RegisterProximityMetrics registers Prometheus proximity metrics. Must be called once from main.
func RegisterProximityMetrics() {
	if proximityMetricsRegistered {
		return
	}
	prometheus.MustRegister(PositionPublishesTotal)
	prometheus.MustRegister(ProximityQueriesTotal)
	prometheus.MustRegister(StaleResultsDroppedTotal)
	prometheus.MustRegister(ActiveWatches)
	prometheus.MustRegister(VocabularyRefreshTotal)
	proximityMetricsRegistered = true
}

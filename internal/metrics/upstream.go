package metrics

import "github.com/prometheus/client_golang/prometheus"

// Dogs API and search view Prometheus metrics.
var (
	DogsAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puppyradar",
			Name:      "dogs_api_requests_total",
			Help:      "Total number of dogs API requests",
		},
		[]string{"endpoint", "status"},
	)

	DogsAPIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "puppyradar",
			Name:      "dogs_api_request_duration_seconds",
			Help:      "Dogs API request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	SearchStaleResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puppyradar",
			Name:      "search_stale_results_total",
			Help:      "Fetch results discarded because a newer search query was issued",
		},
		[]string{"stage"}, // "query" / "details"
	)

	SessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "puppyradar",
			Name:      "session_events_total",
			Help:      "Session lifecycle events",
		},
		[]string{"event"}, // "login" / "logout" / "expired"
	)
)

var upstreamMetricsRegistered bool

// RegisterUpstreamMetrics registers dogs API and session metrics. Must be called once from main.
func RegisterUpstreamMetrics() {
	if upstreamMetricsRegistered {
		return
	}
	prometheus.MustRegister(DogsAPIRequestsTotal)
	prometheus.MustRegister(DogsAPIRequestDuration)
	prometheus.MustRegister(SearchStaleResultsTotal)
	prometheus.MustRegister(SessionEventsTotal)
	upstreamMetricsRegistered = true
}

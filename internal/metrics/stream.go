package metrics

import "github.com/prometheus/client_golang/prometheus"

// Stream and session Prometheus metrics.
var (
	StreamsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agentdex",
			Name:      "streams_started_total",
			Help:      "Total number of search streams opened",
		},
	)

	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentdex",
			Name:      "stream_events_total",
			Help:      "Transport events applied to stream sessions",
		},
		[]string{"type"}, // result / duplicate / metadata / error / complete
	)

	StreamEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentdex",
			Name:      "stream_ended_total",
			Help:      "Stream sessions ended, by how they ended",
		},
		[]string{"reason"}, // complete / error / stopped / cleared / restarted
	)

	StreamDroppedCallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agentdex",
			Name:      "stream_dropped_callbacks_total",
			Help:      "Callbacks discarded because their stream was superseded",
		},
	)

	SearchCacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentdex",
			Name:      "search_cache_writes_total",
			Help:      "Search snapshot writes into the shared cache",
		},
		[]string{"status"}, // ok / error
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentdex",
			Name:      "sessions_active",
			Help:      "Number of live search sessions",
		},
	)
)

var streamMetricsRegistered bool

// RegisterStreamMetrics registers stream and session metrics. Must be called once from main.
func RegisterStreamMetrics() {
	if streamMetricsRegistered {
		return
	}
	prometheus.MustRegister(StreamsStartedTotal)
	prometheus.MustRegister(StreamEventsTotal)
	prometheus.MustRegister(StreamEndedTotal)
	prometheus.MustRegister(StreamDroppedCallbacksTotal)
	prometheus.MustRegister(SearchCacheWritesTotal)
	prometheus.MustRegister(SessionsActive)
	streamMetricsRegistered = true
}

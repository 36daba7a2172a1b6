package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat pipeline Prometheus metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "chat_requests_total",
			Help:      "Total chat requests by grounding path and outcome",
		},
		[]string{"grounding", "status"}, // status: "ok" / "error"
	)

	ChatFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "chat_fallbacks_total",
			Help:      "Fallback transitions taken by the retrieval pipeline",
		},
		[]string{"reason"}, // "embedding_unavailable" / "vector_empty" / "relevance_unavailable"
	)

	RelevanceFilterTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "relevance_filter_total",
			Help:      "Relevance filter outcomes",
		},
		[]string{"outcome"}, // "selected" / "empty" / "call_error" / "parse_error"
	)

	ChatAnswerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "chat_answer_duration_seconds",
			Help:      "End-to-end chat pipeline duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
	)
)

var chatMetricsRegistered bool

// RegisterChatMetrics registers Prometheus chat metrics. Must be called once from main.
func RegisterChatMetrics() {
	if chatMetricsRegistered {
		return
	}
	prometheus.MustRegister(ChatRequestsTotal)
	prometheus.MustRegister(ChatFallbacksTotal)
	prometheus.MustRegister(RelevanceFilterTotal)
	prometheus.MustRegister(ChatAnswerDuration)
	chatMetricsRegistered = true
}

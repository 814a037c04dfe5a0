// Pipeline Prometheus metrics: per-stage outcomes and durations plus token
// usage reported by the chat-completion provider.
package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_pipeline_stage_total",
			Help: "Pipeline stage attempts by outcome.",
		},
		[]string{"stage", "status"}, // stage: text|images|audio|video; status: success|fallback|error
	)
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_pipeline_stage_duration_seconds",
			Help:    "Histogram of pipeline stage durations.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_ai_requests_total",
			Help: "Total number of requests to the chat-completion API.",
		},
		[]string{"model", "status"},
	)
	aiTotalTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_ai_total_tokens",
			Help:    "Histogram of total token counts (prompt + completion).",
			Buckets: prometheus.LinearBuckets(350, 350, 20),
		},
		[]string{"model"},
	)
)

// ObserveStage records one stage attempt with its outcome and duration.
func ObserveStage(stage, status string, seconds float64) {
	stageTotal.WithLabelValues(stage, status).Inc()
	stageDuration.WithLabelValues(stage).Observe(seconds)
}

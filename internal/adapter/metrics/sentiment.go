package metrics

import "github.com/prometheus/client_golang/prometheus"

// SentimentMetrics holds Prometheus metrics for text search, scoring and aggregation.
type SentimentMetrics struct {
	Scores       *prometheus.CounterVec
	Searches     *prometheus.CounterVec
	Aggregations *prometheus.CounterVec
	ScoreLatency prometheus.Histogram
}

// NewSentimentMetrics creates and registers sentiment metrics on the given registry.
func NewSentimentMetrics(reg prometheus.Registerer) *SentimentMetrics {
	m := &SentimentMetrics{
		Scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sentiment",
			Name:      "scores_total",
			Help:      "Total number of scoring calls, by result (ok, miss).",
		}, []string{"result"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sentiment",
			Name:      "searches_total",
			Help:      "Total number of text searches, by result (ok, error).",
		}, []string{"result"}),
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sentiment",
			Name:      "aggregations_total",
			Help:      "Total number of aggregations, by result (scored, empty).",
		}, []string{"result"}),
		ScoreLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sentiment",
			Name:      "score_duration_seconds",
			Help:      "Duration of a single scoring call including permit wait, in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(m.Scores, m.Searches, m.Aggregations, m.ScoreLatency)
	return m
}

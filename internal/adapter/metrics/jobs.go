package metrics

import "github.com/prometheus/client_golang/prometheus"

// JobMetrics holds Prometheus metrics for the trade job pipeline.
type JobMetrics struct {
	Enqueued     *prometheus.CounterVec
	Processed    prometheus.Counter
	Duration     prometheus.Histogram
	StakeActions *prometheus.CounterVec
}

// NewJobMetrics creates and registers trade pipeline metrics on the given registry.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		Enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade_jobs",
			Name:      "enqueued_total",
			Help:      "Total number of trade job submissions, by result (ok, dropped, error).",
		}, []string{"result"}),
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade_jobs",
			Name:      "processed_total",
			Help:      "Total number of trade jobs run to completion.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trade_jobs",
			Name:      "duration_seconds",
			Help:      "Duration of a trade job from dequeue to actuation, in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StakeActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade_jobs",
			Name:      "stake_actions_total",
			Help:      "Total number of stake actions submitted, by direction and result.",
		}, []string{"direction", "result"}),
	}

	reg.MustRegister(m.Enqueued, m.Processed, m.Duration, m.StakeActions)
	return m
}

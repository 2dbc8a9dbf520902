package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics holds Prometheus metrics for remote ledger lookups.
type LedgerMetrics struct {
	Attempts      *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	InFlight      prometheus.Gauge
	FetchDuration prometheus.Histogram
}

// NewLedgerMetrics creates and registers ledger metrics on the given registry.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "attempts_total",
			Help:      "Total number of ledger connection attempts, by outcome.",
		}, []string{"outcome"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fetches_total",
			Help:      "Total number of ledger fetches, by result (found, absent, degraded, malformed, cancelled).",
		}, []string{"result"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "in_flight_fetches",
			Help:      "Number of ledger fetches currently holding a permit.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of ledger fetches including retries, in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(m.Attempts, m.Fetches, m.InFlight, m.FetchDuration)
	return m
}

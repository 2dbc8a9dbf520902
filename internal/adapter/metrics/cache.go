package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the dividend side-cache.
type CacheMetrics struct {
	Lookups *prometheus.CounterVec
	Errors  *prometheus.CounterVec
	Writes  *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend_cache",
			Name:      "lookups_total",
			Help:      "Total number of dividend cache lookups, by result (hit, miss, tombstone).",
		}, []string{"result"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend_cache",
			Name:      "errors_total",
			Help:      "Total number of failed dividend cache operations, by operation.",
		}, []string{"operation"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dividend_cache",
			Name:      "writes_total",
			Help:      "Total number of dividend cache writes, by kind (value, absent).",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.Lookups, m.Errors, m.Writes)
	return m
}

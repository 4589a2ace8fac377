package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the tally cache store.
type CacheMetrics struct {
	Lookups       *prometheus.CounterVec
	Writes        prometheus.Counter
	StorageErrors *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tally_cache",
			Name:      "lookups_total",
			Help:      "Total number of tally cache lookups, by result (hit, miss, expired).",
		}, []string{"result"}),
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tally_cache",
			Name:      "writes_total",
			Help:      "Total number of tally cache writes persisted.",
		}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tally_cache",
			Name:      "storage_errors_total",
			Help:      "Total number of absorbed storage faults, by kind (read, write, corrupt).",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.Lookups, m.Writes, m.StorageErrors)
	return m
}

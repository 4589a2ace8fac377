package metrics

import "github.com/prometheus/client_golang/prometheus"

// RemoteMetrics holds Prometheus metrics for calls to the tally service.
type RemoteMetrics struct {
	Requests            *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	CircuitBreakerState prometheus.Gauge
}

// NewRemoteMetrics creates and registers tally service metrics on the given registry.
func NewRemoteMetrics(reg prometheus.Registerer) *RemoteMetrics {
	m := &RemoteMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tally_client",
			Name:      "requests_total",
			Help:      "Total number of tally service requests, by operation and status.",
		}, []string{"operation", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tally_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of tally service requests in seconds.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tally_client",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.CircuitBreakerState)
	return m
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics holds Prometheus metrics for rating sessions and their votes.
type SessionMetrics struct {
	VotesByOutcome *prometheus.CounterVec
	Anomalies      prometheus.Counter
	Loads          *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	Evictions      prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		VotesByOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of votes submitted, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tally_clamped_total",
			Help:      "Tallies that would have gone below zero and were clamped.",
		}),
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_loads_total",
			Help:      "Total number of rating loads, by source (cache, remote, error).",
		}, []string{"source"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of rating sessions held in memory.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Total number of idle rating sessions evicted.",
		}),
	}

	reg.MustRegister(m.VotesByOutcome, m.Anomalies, m.Loads, m.ActiveSessions, m.Evictions)
	return m
}

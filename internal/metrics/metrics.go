package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the server.
type Metrics struct {
	ProcedureCalls    *prometheus.CounterVec
	ProcedureDuration *prometheus.HistogramVec
	RemindersSent     prometheus.Counter
	DigestsSent       prometheus.Counter
}

// New registers the collectors on reg. A nil reg builds unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProcedureCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "todocalendar",
			Name:      "procedure_calls_total",
			Help:      "Procedure calls by name and result code.",
		}, []string{"procedure", "code"}),
		ProcedureDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "todocalendar",
			Name:      "procedure_duration_seconds",
			Help:      "Procedure latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		RemindersSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "todocalendar",
			Name:      "reminders_sent_total",
			Help:      "Task reminders delivered.",
		}),
		DigestsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "todocalendar",
			Name:      "digests_sent_total",
			Help:      "Daily digests delivered.",
		}),
	}
}

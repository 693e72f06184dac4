package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the registration write path.
type Metrics struct {
	RegistrationsTotal *prometheus.CounterVec
	NumberConflicts    prometheus.Counter
	VisitorsResolved   *prometheus.CounterVec
	RegisterDuration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Subsystem: "registration",
			Name:      "registrations_total",
			Help:      "Registration submissions by outcome.",
		}, []string{"outcome"}),
		NumberConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatepass",
			Subsystem: "registration",
			Name:      "number_conflicts_total",
			Help:      "Registration number collisions absorbed by retrying with a fresh sequence.",
		}),
		VisitorsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Subsystem: "registration",
			Name:      "visitors_resolved_total",
			Help:      "Visitor identity resolutions by result (created or matched).",
		}, []string{"result"}),
		RegisterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gatepass",
			Subsystem: "registration",
			Name:      "register_duration_seconds",
			Help:      "End-to-end registration submission latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

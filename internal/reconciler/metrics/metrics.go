package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks integrity sweeps and the drift they find.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec
	RepairsTotal *prometheus.CounterVec
	DriftFound   *prometheus.GaugeVec
	SweepSeconds prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Subsystem: "reconciler",
			Name:      "runs_total",
			Help:      "Reconciler sweeps by outcome.",
		}, []string{"outcome"}),
		RepairsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Subsystem: "reconciler",
			Name:      "repairs_total",
			Help:      "Repairs applied, by kind of drift.",
		}, []string{"kind"}),
		DriftFound: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gatepass",
			Subsystem: "reconciler",
			Name:      "drift_found",
			Help:      "Drift detected in the last sweep, by kind. Includes report-only findings.",
		}, []string{"kind"}),
		SweepSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gatepass",
			Subsystem: "reconciler",
			Name:      "sweep_duration_seconds",
			Help:      "Full sweep latency.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

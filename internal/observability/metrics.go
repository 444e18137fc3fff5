package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the decision engine.
type Metrics struct {
	ObservationsAccepted prometheus.Counter
	ObservationsRejected *prometheus.CounterVec // labels: reason={validation,temporal_order,config,computation,other}
	Decisions            *prometheus.CounterVec // labels: rationale={NONE,SMD_EXCEEDED,CWSI_EXCEEDED,BOTH}
	IrrigationEvents     prometheus.Counter

	SMDFraction *prometheus.GaugeVec // labels: zone
	CWSI        *prometheus.GaugeVec // labels: zone
}

// NewMetrics registers the engine collectors with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers with a caller-supplied registry so tests
// can stay isolated.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObservationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_to_alert",
			Name:      "observations_accepted_total",
			Help:      "Observations that passed validation and were applied.",
		}),
		ObservationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_to_alert",
			Name:      "observations_rejected_total",
			Help:      "Observations rejected by the ingest or tracker, by reason.",
		}, []string{"reason"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_to_alert",
			Name:      "decisions_total",
			Help:      "Decision records produced, by rationale.",
		}, []string{"rationale"}),
		IrrigationEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_to_alert",
			Name:      "irrigation_events_total",
			Help:      "Irrigation events applied to the water balance.",
		}),
		SMDFraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "field_to_alert",
			Name:      "smd_depletion_fraction",
			Help:      "Current soil moisture deficit as a fraction of effective WHC.",
		}, []string{"zone"}),
		CWSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "field_to_alert",
			Name:      "cwsi",
			Help:      "Most recent crop water stress index.",
		}, []string{"zone"}),
	}
	reg.MustRegister(
		m.ObservationsAccepted,
		m.ObservationsRejected,
		m.Decisions,
		m.IrrigationEvents,
		m.SMDFraction,
		m.CWSI,
	)
	return m
}

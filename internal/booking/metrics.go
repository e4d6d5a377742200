package booking

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	operations     *prometheus.CounterVec
	effects        *prometheus.CounterVec
	effectDuration *prometheus.HistogramVec
}

// NewMetrics registers the booking collectors on reg. A nil reg keeps them
// unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_booking_operations_total",
				Help: "Booking operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		effects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_booking_effects_total",
				Help: "Post-commit effects (sync, notify, audit) by outcome",
			},
			[]string{"effect", "outcome"},
		),
		effectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_booking_effect_duration_seconds",
				Help:    "Post-commit effect duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"effect"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.operations, m.effects, m.effectDuration)
	}
	return m
}

func (m *Metrics) operation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics counts scheduling operations by outcome.
type SchedulingMetrics struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	reminders  prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Appointment lifecycle operations by result",
		}, []string{"operation", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "conflicts_total",
			Help:      "Booking rejections caused by overlapping appointments",
		}, []string{"party"}),
		reminders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "reminders_sent_total",
			Help:      "Consultation reminders dispatched",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operations, m.conflicts, m.reminders)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *SchedulingMetrics) ObserveConflict(party string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(party).Inc()
}

func (m *SchedulingMetrics) ObserveReminder() {
	if m == nil {
		return
	}
	m.reminders.Inc()
}

package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsNotifier counts lifecycle events in prometheus. Dry-run instances
// are invisible to metrics like to every other side effect.
type MetricsNotifier struct {
	instancesCreated   prometheus.Counter
	instancesCompleted prometheus.Counter
	instancesFailed    prometheus.Counter
	activities         *prometheus.CounterVec
	catchEventArrivals prometheus.Counter
	transitionsApplied prometheus.Counter
	expressionFailures prometheus.Counter
}

var _ Notifier = &MetricsNotifier{}

func NewMetricsNotifier(reg prometheus.Registerer) *MetricsNotifier {
	m := &MetricsNotifier{
		instancesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_process_instances_created_total",
			Help: "Number of process instances created.",
		}),
		instancesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_process_instances_completed_total",
			Help: "Number of process instances completed.",
		}),
		instancesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_process_instances_failed_total",
			Help: "Number of process instances that ended in error state.",
		}),
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmn_activities_total",
			Help: "Number of activity lifecycle events by element type and intent.",
		}, []string{"element_type", "intent"}),
		catchEventArrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_catch_event_arrivals_total",
			Help: "Number of intermediate catch event arrivals.",
		}),
		transitionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_conditioned_transitions_total",
			Help: "Number of transitions that applied a data update expression.",
		}),
		expressionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmn_expression_failures_total",
			Help: "Number of recoverable expression evaluation failures.",
		}),
	}
	reg.MustRegister(
		m.instancesCreated,
		m.instancesCompleted,
		m.instancesFailed,
		m.activities,
		m.catchEventArrivals,
		m.transitionsApplied,
		m.expressionFailures,
	)
	return m
}

func (m *MetricsNotifier) ProcessInstanceCreated(event ProcessInstanceCreatedEvent) {
	if event.NonPersistent {
		return
	}
	m.instancesCreated.Inc()
}

func (m *MetricsNotifier) ProcessInstanceCompleted(event ProcessInstanceCompletedEvent) {
	if event.NonPersistent {
		return
	}
	m.instancesCompleted.Inc()
}

func (m *MetricsNotifier) ProcessInstanceFailed(event ProcessInstanceFailedEvent) {
	if event.NonPersistent {
		return
	}
	m.instancesFailed.Inc()
}

func (m *MetricsNotifier) ActivityActivated(event ActivityEvent) {
	if event.NonPersistent {
		return
	}
	m.activities.WithLabelValues(event.ElementType, "activated").Inc()
}

func (m *MetricsNotifier) ActivityCompleted(event ActivityEvent) {
	if event.NonPersistent {
		return
	}
	m.activities.WithLabelValues(event.ElementType, "completed").Inc()
}

func (m *MetricsNotifier) ActivityClosed(event ActivityEvent) {
	if event.NonPersistent {
		return
	}
	m.activities.WithLabelValues(event.ElementType, "closed").Inc()
}

func (m *MetricsNotifier) IntermediateCatchEventArrived(event CatchEventArrivedEvent) {
	if event.NonPersistent {
		return
	}
	m.catchEventArrivals.Inc()
}

func (m *MetricsNotifier) ConditionedTransitionApplied(event ConditionedTransitionEvent) {
	if event.NonPersistent {
		return
	}
	m.transitionsApplied.Inc()
}

func (m *MetricsNotifier) ExpressionFailed(event ExpressionFailedEvent) {
	if event.NonPersistent {
		return
	}
	m.expressionFailures.Inc()
}

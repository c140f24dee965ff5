package notifier

import (
	"github.com/hashicorp/go-hclog"
)

// LogNotifier writes lifecycle events to the log at debug level.
type LogNotifier struct {
	logger hclog.Logger
}

var _ Notifier = &LogNotifier{}

func NewLogNotifier(logger hclog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("lifecycle")}
}

func (l *LogNotifier) ProcessInstanceCreated(event ProcessInstanceCreatedEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("process instance created", "processId", event.ProcessId, "instanceKey", event.ProcessInstanceKey)
}

func (l *LogNotifier) ProcessInstanceCompleted(event ProcessInstanceCompletedEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("process instance completed", "processId", event.ProcessId, "instanceKey", event.ProcessInstanceKey)
}

func (l *LogNotifier) ProcessInstanceFailed(event ProcessInstanceFailedEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Warn("process instance failed", "processId", event.ProcessId, "instanceKey", event.ProcessInstanceKey,
		"elementId", event.ElementId, "reason", event.Reason)
}

func (l *LogNotifier) ActivityActivated(event ActivityEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("activity activated", "instanceKey", event.ProcessInstanceKey, "elementId", event.ElementId,
		"elementType", event.ElementType)
}

func (l *LogNotifier) ActivityCompleted(event ActivityEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("activity completed", "instanceKey", event.ProcessInstanceKey, "elementId", event.ElementId,
		"elementType", event.ElementType)
}

func (l *LogNotifier) ActivityClosed(event ActivityEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("activity closed", "instanceKey", event.ProcessInstanceKey, "elementId", event.ElementId,
		"elementType", event.ElementType)
}

func (l *LogNotifier) IntermediateCatchEventArrived(event CatchEventArrivedEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("catch event arrived", "instanceKey", event.ProcessInstanceKey, "elementId", event.ElementId,
		"eventName", event.EventName)
}

func (l *LogNotifier) ConditionedTransitionApplied(event ConditionedTransitionEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Debug("conditioned transition applied", "instanceKey", event.ProcessInstanceKey, "flowId", event.FlowId,
		"updatedKeys", event.UpdatedKeys)
}

func (l *LogNotifier) ExpressionFailed(event ExpressionFailedEvent) {
	if event.NonPersistent {
		return
	}
	l.logger.Warn("expression evaluation failed", "instanceKey", event.ProcessInstanceKey, "elementId", event.ElementId,
		"expression", event.Expression, "reason", event.Reason)
}

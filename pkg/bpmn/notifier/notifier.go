// Package notifier decouples side effects from the engine's state
// transitions. The engine emits one typed event after each mutation;
// implementations perform I/O (metrics, comments, logging, delivery).
//
// Implementations never mutate engine state, and every handler must check
// Event.NonPersistent first: dry-run instances produce no side effects.
package notifier

import "time"

// Event is the common envelope embedded in every lifecycle event.
type Event struct {
	ProcessId            string
	ProcessDefinitionKey int64
	ProcessInstanceKey   int64
	NonPersistent        bool
}

type ProcessInstanceCreatedEvent struct {
	Event
	CreatedAt time.Time
}

type ProcessInstanceCompletedEvent struct {
	Event
	CompletedAt time.Time
}

type ProcessInstanceFailedEvent struct {
	Event
	ElementId string
	Reason    string
}

// ActivityEvent carries a token snapshot, not the token itself.
type ActivityEvent struct {
	Event
	ElementId   string
	ElementType string
	TokenKey    int64
	Assignee    string
}

type CatchEventArrivedEvent struct {
	Event
	ElementId string
	EventName string
	TokenKey  int64
}

type ConditionedTransitionEvent struct {
	Event
	FlowId      string
	SourceId    string
	TargetId    string
	UpdatedKeys []string
}

type ExpressionFailedEvent struct {
	Event
	ElementId  string
	Expression string
	Reason     string
}

// Notifier is the closed set of lifecycle events, one method per variant.
type Notifier interface {
	ProcessInstanceCreated(event ProcessInstanceCreatedEvent)
	ProcessInstanceCompleted(event ProcessInstanceCompletedEvent)
	ProcessInstanceFailed(event ProcessInstanceFailedEvent)
	ActivityActivated(event ActivityEvent)
	ActivityCompleted(event ActivityEvent)
	ActivityClosed(event ActivityEvent)
	IntermediateCatchEventArrived(event CatchEventArrivedEvent)
	ConditionedTransitionApplied(event ConditionedTransitionEvent)
	ExpressionFailed(event ExpressionFailedEvent)
}

// Multi fans one event out to several notifiers, in registration order.
type Multi struct {
	notifiers []Notifier
}

var _ Notifier = &Multi{}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

func (m *Multi) ProcessInstanceCreated(event ProcessInstanceCreatedEvent) {
	for _, n := range m.notifiers {
		n.ProcessInstanceCreated(event)
	}
}

func (m *Multi) ProcessInstanceCompleted(event ProcessInstanceCompletedEvent) {
	for _, n := range m.notifiers {
		n.ProcessInstanceCompleted(event)
	}
}

func (m *Multi) ProcessInstanceFailed(event ProcessInstanceFailedEvent) {
	for _, n := range m.notifiers {
		n.ProcessInstanceFailed(event)
	}
}

func (m *Multi) ActivityActivated(event ActivityEvent) {
	for _, n := range m.notifiers {
		n.ActivityActivated(event)
	}
}

func (m *Multi) ActivityCompleted(event ActivityEvent) {
	for _, n := range m.notifiers {
		n.ActivityCompleted(event)
	}
}

func (m *Multi) ActivityClosed(event ActivityEvent) {
	for _, n := range m.notifiers {
		n.ActivityClosed(event)
	}
}

func (m *Multi) IntermediateCatchEventArrived(event CatchEventArrivedEvent) {
	for _, n := range m.notifiers {
		n.IntermediateCatchEventArrived(event)
	}
}

func (m *Multi) ConditionedTransitionApplied(event ConditionedTransitionEvent) {
	for _, n := range m.notifiers {
		n.ConditionedTransitionApplied(event)
	}
}

func (m *Multi) ExpressionFailed(event ExpressionFailedEvent) {
	for _, n := range m.notifiers {
		n.ExpressionFailed(event)
	}
}

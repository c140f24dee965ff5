package runtime

import (
	"time"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
)

type ProcessDefinition struct {
	BpmnProcessId    string              // the id as defined in the BPMN file
	Version          int32               // incremented when another process with the same id is deployed
	Key              int64               // the engine's key for this process and version
	Definitions      bpmn20.TDefinitions // parsed file content
	BpmnData         string              // raw source document
	BpmnResourceName string
	BpmnChecksum     [16]byte // identifies different versions of the same process
	LoadWarnings     []string // non-fatal reference problems recorded at load time
}

// InstanceState is the lifecycle state of one process instance.
type InstanceState string

const (
	InstanceStateActive    InstanceState = "ACTIVE"
	InstanceStateCompleted InstanceState = "COMPLETED"
	InstanceStateError     InstanceState = "ERROR"
)

// TokenState is the lifecycle state of one thread of control.
// A WAITING token is still active in BPMN terms: it is parked on a task,
// catch event or partially satisfied join until an external signal arrives.
// CLOSED is reached when a competing branch makes the token's path
// unreachable; closing an already terminal token is a no-op.
type TokenState string

const (
	TokenStateActive    TokenState = "ACTIVE"
	TokenStateWaiting   TokenState = "WAITING"
	TokenStateCompleted TokenState = "COMPLETED"
	TokenStateClosed    TokenState = "CLOSED"
	TokenStateFailed    TokenState = "FAILED"
)

// IsTerminal reports whether no further transition may consume the token.
func (s TokenState) IsTerminal() bool {
	return s == TokenStateCompleted || s == TokenStateClosed || s == TokenStateFailed
}

// Token represents one thread of control at a specific node of the process
// graph. Tokens are consumed and replaced as the instance advances.
type Token struct {
	Key                int64              `json:"key"`
	ProcessInstanceKey int64              `json:"processInstanceKey"`
	ElementId          string             `json:"elementId"`
	ElementInstanceKey int64              `json:"elementInstanceKey"`
	ElementType        bpmn20.ElementType `json:"elementType"`
	State              TokenState         `json:"state"`
	Assignee           string             `json:"assignee,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

type CaughtEvent struct {
	Name       string         `json:"name"`
	CaughtAt   time.Time      `json:"caughtAt"`
	IsConsumed bool           `json:"isConsumed"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// ProcessInstance is one running instantiation of a process definition.
// GatewayArrivals buffers partial AND-join arrivals (gateway element id to
// inbound flow ids already taken); it is part of the persisted snapshot so
// incomplete joins survive suspend/resume.
type ProcessInstance struct {
	Definition      *ProcessDefinition  `json:"-"`
	Key             int64               `json:"key"`
	PublicId        string              `json:"publicId"`
	DefinitionKey   int64               `json:"definitionKey"`
	State           InstanceState       `json:"state"`
	DataStore       DataStore           `json:"dataStore"`
	CreatedAt       time.Time           `json:"createdAt"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	NonPersistent   bool                `json:"nonPersistent,omitempty"`
	CaughtEvents    []CaughtEvent       `json:"caughtEvents,omitempty"`
	GatewayArrivals map[string][]string `json:"gatewayArrivals,omitempty"`
}

func (pi *ProcessInstance) GetVariable(key string) any {
	return pi.DataStore.GetVariable(key)
}

func (pi *ProcessInstance) SetVariable(key string, value any) {
	pi.DataStore.SetVariable(key, value)
}

// RecordGatewayArrival buffers one inbound-flow arrival at a join gateway.
// Recording the same flow twice is idempotent.
func (pi *ProcessInstance) RecordGatewayArrival(gatewayId string, flowId string) {
	if pi.GatewayArrivals == nil {
		pi.GatewayArrivals = make(map[string][]string)
	}
	for _, id := range pi.GatewayArrivals[gatewayId] {
		if id == flowId {
			return
		}
	}
	pi.GatewayArrivals[gatewayId] = append(pi.GatewayArrivals[gatewayId], flowId)
}

// GatewayArrivalsComplete reports whether every required inbound flow has
// arrived at the gateway.
func (pi *ProcessInstance) GatewayArrivalsComplete(gatewayId string, requiredFlowIds []string) bool {
	arrived := pi.GatewayArrivals[gatewayId]
	for _, required := range requiredFlowIds {
		found := false
		for _, id := range arrived {
			if id == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ClearGatewayArrivals resets the join buffer after the gateway fired.
func (pi *ProcessInstance) ClearGatewayArrivals(gatewayId string) {
	delete(pi.GatewayArrivals, gatewayId)
}

// CommentKind tags why a comment was recorded.
type CommentKind string

const (
	CommentKindEventArrived CommentKind = "EVENT_ARRIVED"
	CommentKindError        CommentKind = "ERROR"
)

// Comment is an annotation attached to a process instance by the
// side-effect layer. Never created for non-persistent instances.
type Comment struct {
	Key                int64       `json:"key"`
	ProcessInstanceKey int64       `json:"processInstanceKey"`
	ElementId          string      `json:"elementId,omitempty"`
	Kind               CommentKind `json:"kind"`
	Body               string      `json:"body"`
	CreatedAt          time.Time   `json:"createdAt"`
}

// JobState tracks externally completed work (user, script and service tasks).
type JobState string

const (
	JobStateActive    JobState = "ACTIVE"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
)

type Job struct {
	Key                int64     `json:"key"`
	ElementId          string    `json:"elementId"`
	ElementInstanceKey int64     `json:"elementInstanceKey"`
	ProcessInstanceKey int64     `json:"processInstanceKey"`
	Type               string    `json:"type"`
	State              JobState  `json:"state"`
	Assignee           string    `json:"assignee,omitempty"`
	CandidateGroups    []string  `json:"candidateGroups,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	Token              Token     `json:"token"`
}

// SubscriptionState tracks a message subscription created by an
// intermediate message catch event.
type SubscriptionState string

const (
	SubscriptionStateActive    SubscriptionState = "ACTIVE"
	SubscriptionStateCompleted SubscriptionState = "COMPLETED"
	SubscriptionStateWithdrawn SubscriptionState = "WITHDRAWN"
)

type MessageSubscription struct {
	Key                  int64             `json:"key"`
	ElementId            string            `json:"elementId"`
	ProcessDefinitionKey int64             `json:"processDefinitionKey"`
	ProcessInstanceKey   int64             `json:"processInstanceKey"`
	Name                 string            `json:"name"`
	State                SubscriptionState `json:"state"`
	CreatedAt            time.Time         `json:"createdAt"`
	Token                Token             `json:"token"`
}

type TimerState string

const (
	TimerStateCreated   TimerState = "CREATED"
	TimerStateTriggered TimerState = "TRIGGERED"
	TimerStateCancelled TimerState = "CANCELLED"
)

// Timer is created when an instance reaches a timer intermediate catch
// event: CreatedAt + Duration = DueAt.
type Timer struct {
	Key                  int64         `json:"key"`
	ElementId            string        `json:"elementId"`
	ProcessDefinitionKey int64         `json:"processDefinitionKey"`
	ProcessInstanceKey   int64         `json:"processInstanceKey"`
	State                TimerState    `json:"state"`
	CreatedAt            time.Time     `json:"createdAt"`
	DueAt                time.Time     `json:"dueAt"`
	Duration             time.Duration `json:"duration"`
	Token                Token         `json:"token"`
}

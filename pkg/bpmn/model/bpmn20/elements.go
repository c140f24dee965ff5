package bpmn20

import (
	"strings"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/extensions"
)

type ElementType string

const (
	ElementTypeStartEvent             ElementType = "START_EVENT"
	ElementTypeEndEvent               ElementType = "END_EVENT"
	ElementTypeUserTask               ElementType = "USER_TASK"
	ElementTypeScriptTask             ElementType = "SCRIPT_TASK"
	ElementTypeServiceTask            ElementType = "SERVICE_TASK"
	ElementTypeParallelGateway        ElementType = "PARALLEL_GATEWAY"
	ElementTypeExclusiveGateway       ElementType = "EXCLUSIVE_GATEWAY"
	ElementTypeInclusiveGateway       ElementType = "INCLUSIVE_GATEWAY"
	ElementTypeIntermediateCatchEvent ElementType = "INTERMEDIATE_CATCH_EVENT"
	ElementTypeSequenceFlow           ElementType = "SEQUENCE_FLOW"
)

// ---------------------------------------------------------------------
// events

type TEvent struct {
	TFlowNode
}

type TStartEvent struct {
	TEvent
	IsInterrupting bool `xml:"isInterrupting,attr"`
}

func (startEvent TStartEvent) GetType() ElementType { return ElementTypeStartEvent }

type TEndEvent struct {
	TEvent
}

func (endEvent TEndEvent) GetType() ElementType { return ElementTypeEndEvent }

type TIntermediateCatchEvent struct {
	TEvent
	MessageEventDefinition TMessageEventDefinition `xml:"messageEventDefinition"`
	TimerEventDefinition   TTimerEventDefinition   `xml:"timerEventDefinition"`
	Output                 []extensions.TIoMapping `xml:"extensionElements>ioMapping>output"`
}

func (ice TIntermediateCatchEvent) GetType() ElementType {
	return ElementTypeIntermediateCatchEvent
}

func (ice TIntermediateCatchEvent) IsMessageEvent() bool {
	return ice.MessageEventDefinition.Id != ""
}

func (ice TIntermediateCatchEvent) IsTimerEvent() bool {
	return ice.TimerEventDefinition.Id != ""
}

type TMessageEventDefinition struct {
	Id         string `xml:"id,attr"`
	MessageRef string `xml:"messageRef,attr"`
}

type TTimerEventDefinition struct {
	Id           string        `xml:"id,attr"`
	TimeDuration TTimeDuration `xml:"timeDuration"`
}

type TTimeDuration struct {
	XMLText string `xml:",chardata"`
}

// ---------------------------------------------------------------------
// tasks

// TaskElement is implemented by every node the engine turns into a job.
type TaskElement interface {
	FlowNode
	GetTaskType() string
	GetOutputMapping() []extensions.TIoMapping
}

type TTask struct {
	TFlowNode
	Output []extensions.TIoMapping `xml:"extensionElements>ioMapping>output"`
}

func (task TTask) GetOutputMapping() []extensions.TIoMapping { return task.Output }

type TUserTask struct {
	TTask
	AssignmentDefinition extensions.TAssignmentDefinition `xml:"extensionElements>assignmentDefinition"`
}

func (userTask TUserTask) GetType() ElementType { return ElementTypeUserTask }
func (userTask TUserTask) GetTaskType() string  { return "user-task" }

func (userTask TUserTask) GetAssignee() string {
	return userTask.AssignmentDefinition.Assignee
}

func (userTask TUserTask) GetCandidateGroups() []string {
	return userTask.AssignmentDefinition.GetCandidateGroups()
}

// TScriptTask carries its code inline, language keyed by the scriptFormat
// attribute ("javascript", "feel", ...).
type TScriptTask struct {
	TTask
	ScriptFormat     string                       `xml:"scriptFormat,attr"`
	Script           TExpression                  `xml:"script"`
	ScriptDefinition extensions.TScriptDefinition `xml:"extensionElements>scriptDefinition"`
}

func (scriptTask TScriptTask) GetType() ElementType { return ElementTypeScriptTask }

func (scriptTask TScriptTask) GetTaskType() string {
	return strings.ToLower(strings.TrimSpace(scriptTask.ScriptFormat))
}

func (scriptTask TScriptTask) GetScript() string {
	return scriptTask.Script.Text
}

func (scriptTask TScriptTask) GetResultVariable() string {
	return scriptTask.ScriptDefinition.ResultVariable
}

type TServiceTask struct {
	TTask
	Implementation string                     `xml:"implementation,attr"`
	TaskDefinition extensions.TTaskDefinition `xml:"extensionElements>taskDefinition"`
}

func (serviceTask TServiceTask) GetType() ElementType { return ElementTypeServiceTask }

func (serviceTask TServiceTask) GetTaskType() string {
	return serviceTask.TaskDefinition.TypeName
}

// ---------------------------------------------------------------------
// gateways

type GatewayElement interface {
	FlowNode
	IsParallel() bool
	IsExclusive() bool
	IsInclusive() bool
	GetDefaultFlowId() string
}

type TGateway struct {
	TFlowNode
	DefaultFlowId string `xml:"default,attr"`
}

func (g TGateway) IsParallel() bool         { return false }
func (g TGateway) IsExclusive() bool        { return false }
func (g TGateway) IsInclusive() bool        { return false }
func (g TGateway) GetDefaultFlowId() string { return g.DefaultFlowId }

type TParallelGateway struct {
	TGateway
}

func (parallelGateway TParallelGateway) GetType() ElementType { return ElementTypeParallelGateway }
func (parallelGateway TParallelGateway) IsParallel() bool     { return true }

type TExclusiveGateway struct {
	TGateway
}

func (exclusiveGateway TExclusiveGateway) GetType() ElementType { return ElementTypeExclusiveGateway }
func (exclusiveGateway TExclusiveGateway) IsExclusive() bool    { return true }

type TInclusiveGateway struct {
	TGateway
}

func (inclusiveGateway TInclusiveGateway) GetType() ElementType { return ElementTypeInclusiveGateway }
func (inclusiveGateway TInclusiveGateway) IsInclusive() bool    { return true }

// ---------------------------------------------------------------------
// sequence flows

type TSequenceFlow struct {
	TFlowElement
	SourceRef           string                `xml:"sourceRef,attr"`
	TargetRef           string                `xml:"targetRef,attr"`
	ConditionExpression []TExpression         `xml:"conditionExpression"`
	UpdateData          []extensions.TDataSet `xml:"extensionElements>updateData>set"`
}

func (flow TSequenceFlow) GetType() ElementType { return ElementTypeSequenceFlow }

// GetConditionExpression returns the (trimmed) condition, or "" for an
// unconditional flow.
func (flow TSequenceFlow) GetConditionExpression() string {
	if len(flow.ConditionExpression) == 0 {
		return ""
	}
	return strings.TrimSpace(flow.ConditionExpression[0].Text)
}

func (flow TSequenceFlow) HasConditionExpression() bool {
	return flow.GetConditionExpression() != ""
}

package bpmn

import (
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
)

type commandType string

const (
	arrivalCommandType commandType = "arrival"
	leaveCommandType   commandType = "leave"
	flowCommandType    commandType = "flow"
	errorCommandType   commandType = "error"
)

// command is one unit of work on the per-instance execution queue.
// The run loop drains the queue to quiescence before flushing the batch.
type command interface {
	Type() commandType
}

// arrivalCommand moves a token onto a flow node. The node handler either
// passes straight through (events, gateways) or parks the token (tasks,
// catch events, unsatisfied joins).
type arrivalCommand struct {
	token         runtime.Token
	element       bpmn20.FlowNode
	inboundFlowId string
}

func (c arrivalCommand) Type() commandType { return arrivalCommandType }

// leaveCommand finishes a node: the outgoing flows are selected and the
// token is consumed. Issued directly for pass-through nodes and on external
// completion (job done, message arrived, timer fired) for parked ones.
type leaveCommand struct {
	token   runtime.Token
	element bpmn20.FlowNode
}

func (c leaveCommand) Type() commandType { return leaveCommandType }

// flowCommand traverses one selected sequence flow: data updates attached to
// the flow are applied and a fresh token is created at the target node.
type flowCommand struct {
	sourceToken   runtime.Token
	sourceElement bpmn20.FlowNode
	flow          *bpmn20.TSequenceFlow
}

func (c flowCommand) Type() commandType { return flowCommandType }

// errorCommand aborts the instance. It short-circuits the queue.
type errorCommand struct {
	elementId string
	err       error
}

func (c errorCommand) Type() commandType { return errorCommandType }

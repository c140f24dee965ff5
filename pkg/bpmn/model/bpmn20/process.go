package bpmn20

import (
	"fmt"
)

type TProcess struct {
	TBaseElement
	Name                    string                    `xml:"name,attr"`
	IsExecutable            bool                      `xml:"isExecutable,attr"`
	StartEvents             []TStartEvent             `xml:"startEvent"`
	EndEvents               []TEndEvent               `xml:"endEvent"`
	SequenceFlows           []TSequenceFlow           `xml:"sequenceFlow"`
	UserTasks               []TUserTask               `xml:"userTask"`
	ScriptTasks             []TScriptTask             `xml:"scriptTask"`
	ServiceTasks            []TServiceTask            `xml:"serviceTask"`
	ParallelGateways        []TParallelGateway        `xml:"parallelGateway"`
	ExclusiveGateways       []TExclusiveGateway       `xml:"exclusiveGateway"`
	InclusiveGateways       []TInclusiveGateway       `xml:"inclusiveGateway"`
	IntermediateCatchEvents []TIntermediateCatchEvent `xml:"intermediateCatchEvent"`
}

// GetFlowNodeById returns the node with the given id, or nil.
func (p *TProcess) GetFlowNodeById(id string) FlowNode {
	for i := range p.StartEvents {
		if p.StartEvents[i].Id == id {
			return &p.StartEvents[i]
		}
	}
	for i := range p.EndEvents {
		if p.EndEvents[i].Id == id {
			return &p.EndEvents[i]
		}
	}
	for i := range p.UserTasks {
		if p.UserTasks[i].Id == id {
			return &p.UserTasks[i]
		}
	}
	for i := range p.ScriptTasks {
		if p.ScriptTasks[i].Id == id {
			return &p.ScriptTasks[i]
		}
	}
	for i := range p.ServiceTasks {
		if p.ServiceTasks[i].Id == id {
			return &p.ServiceTasks[i]
		}
	}
	for i := range p.ParallelGateways {
		if p.ParallelGateways[i].Id == id {
			return &p.ParallelGateways[i]
		}
	}
	for i := range p.ExclusiveGateways {
		if p.ExclusiveGateways[i].Id == id {
			return &p.ExclusiveGateways[i]
		}
	}
	for i := range p.InclusiveGateways {
		if p.InclusiveGateways[i].Id == id {
			return &p.InclusiveGateways[i]
		}
	}
	for i := range p.IntermediateCatchEvents {
		if p.IntermediateCatchEvents[i].Id == id {
			return &p.IntermediateCatchEvents[i]
		}
	}
	return nil
}

// GetTaskById returns the task node with the given id, or nil when the id
// does not name a user, script or service task.
func (p *TProcess) GetTaskById(id string) TaskElement {
	for i := range p.UserTasks {
		if p.UserTasks[i].Id == id {
			return &p.UserTasks[i]
		}
	}
	for i := range p.ScriptTasks {
		if p.ScriptTasks[i].Id == id {
			return &p.ScriptTasks[i]
		}
	}
	for i := range p.ServiceTasks {
		if p.ServiceTasks[i].Id == id {
			return &p.ServiceTasks[i]
		}
	}
	return nil
}

// GetSequenceFlowById returns the flow with the given id, or nil.
func (p *TProcess) GetSequenceFlowById(id string) *TSequenceFlow {
	for i := range p.SequenceFlows {
		if p.SequenceFlows[i].Id == id {
			return &p.SequenceFlows[i]
		}
	}
	return nil
}

// FindSequenceFlows returns the flows matching the given ids, in the order
// they are declared in the document. Declaration order matters for
// exclusive gateway semantics.
func FindSequenceFlows(flows *[]TSequenceFlow, ids []string) (result []TSequenceFlow) {
	for _, flow := range *flows {
		for _, id := range ids {
			if id == flow.Id {
				result = append(result, flow)
			}
		}
	}
	return result
}

// FindFirstSequenceFlow returns the first flow connecting source to target.
func FindFirstSequenceFlow(flows *[]TSequenceFlow, sourceId string, targetId string) *TSequenceFlow {
	for i := range *flows {
		flow := &(*flows)[i]
		if flow.SourceRef == sourceId && flow.TargetRef == targetId {
			return flow
		}
	}
	return nil
}

// ElementNotFoundError reports a reference to an element id that has no
// corresponding definition. References outside the flow graph (default
// flows, message refs) are recoverable: callers record the error as a
// warning on the owning entity and keep going.
type ElementNotFoundError struct {
	Id      string
	Context string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element with id=%s not found (referenced by %s)", e.Id, e.Context)
}

// Validate checks the structural integrity of the process graph.
// A sequence flow referencing a missing source or target node is fatal.
// Dangling default-flow and message references are returned as warnings.
func (d *TDefinitions) Validate() (warnings []error, err error) {
	p := &d.Process
	for i := range p.SequenceFlows {
		flow := &p.SequenceFlows[i]
		if p.GetFlowNodeById(flow.SourceRef) == nil {
			return warnings, fmt.Errorf("sequence flow %s: %w", flow.Id,
				&ElementNotFoundError{Id: flow.SourceRef, Context: "sourceRef of flow " + flow.Id})
		}
		if p.GetFlowNodeById(flow.TargetRef) == nil {
			return warnings, fmt.Errorf("sequence flow %s: %w", flow.Id,
				&ElementNotFoundError{Id: flow.TargetRef, Context: "targetRef of flow " + flow.Id})
		}
	}
	gateways := make([]GatewayElement, 0, len(p.ExclusiveGateways)+len(p.InclusiveGateways))
	for i := range p.ExclusiveGateways {
		gateways = append(gateways, &p.ExclusiveGateways[i])
	}
	for i := range p.InclusiveGateways {
		gateways = append(gateways, &p.InclusiveGateways[i])
	}
	for _, gw := range gateways {
		if gw.GetDefaultFlowId() == "" {
			continue
		}
		if p.GetSequenceFlowById(gw.GetDefaultFlowId()) == nil {
			warnings = append(warnings, &ElementNotFoundError{
				Id:      gw.GetDefaultFlowId(),
				Context: "default flow of gateway " + gw.GetId(),
			})
		}
	}
	for i := range p.IntermediateCatchEvents {
		ice := &p.IntermediateCatchEvents[i]
		if !ice.IsMessageEvent() {
			continue
		}
		if d.findMessageById(ice.MessageEventDefinition.MessageRef) == nil {
			warnings = append(warnings, &ElementNotFoundError{
				Id:      ice.MessageEventDefinition.MessageRef,
				Context: "messageRef of catch event " + ice.Id,
			})
		}
	}
	return warnings, nil
}

func (d *TDefinitions) findMessageById(id string) *TMessage {
	for i := range d.Messages {
		if d.Messages[i].Id == id {
			return &d.Messages[i]
		}
	}
	return nil
}

// FindMessageNameById resolves a messageRef to the message name, or "".
func (d *TDefinitions) FindMessageNameById(id string) string {
	if msg := d.findMessageById(id); msg != nil {
		return msg.Name
	}
	return ""
}

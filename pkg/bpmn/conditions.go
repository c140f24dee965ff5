package bpmn

import (
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
)

// expressionFailureHandler is invoked for every recoverable condition
// evaluation failure; the failing flow is treated as not taken.
type expressionFailureHandler func(expression string, err error)

// exclusivelySelectFlow picks the single flow an exclusive decision takes:
// the first conditioned flow (in declaration order) whose condition holds,
// otherwise the explicit default flow, otherwise the first unconditional
// flow. An evaluation error on one condition never aborts the decision.
func exclusivelySelectFlow(flows []bpmn20.TSequenceFlow, defaultFlowId string,
	variableContext map[string]any, onFailure expressionFailureHandler) (*bpmn20.TSequenceFlow, error) {
	for i := range flows {
		flow := &flows[i]
		if flow.Id == defaultFlowId || !flow.HasConditionExpression() {
			continue
		}
		taken, err := evaluateBooleanExpression(flow.GetConditionExpression(), variableContext)
		if err != nil {
			onFailure(flow.GetConditionExpression(), err)
			continue
		}
		if taken {
			return flow, nil
		}
	}
	if defaultFlowId != "" {
		for i := range flows {
			if flows[i].Id == defaultFlowId {
				return &flows[i], nil
			}
		}
	}
	for i := range flows {
		if !flows[i].HasConditionExpression() {
			return &flows[i], nil
		}
	}
	return nil, newEngineErrorf("no outgoing sequence flow satisfied and no default flow declared")
}

// inclusivelySelectFlows picks every flow whose condition holds plus every
// unconditional flow; when nothing matched, the default flow fires alone.
func inclusivelySelectFlows(flows []bpmn20.TSequenceFlow, defaultFlowId string,
	variableContext map[string]any, onFailure expressionFailureHandler) ([]*bpmn20.TSequenceFlow, error) {
	var selected []*bpmn20.TSequenceFlow
	for i := range flows {
		flow := &flows[i]
		if flow.Id == defaultFlowId {
			continue
		}
		if !flow.HasConditionExpression() {
			selected = append(selected, flow)
			continue
		}
		taken, err := evaluateBooleanExpression(flow.GetConditionExpression(), variableContext)
		if err != nil {
			onFailure(flow.GetConditionExpression(), err)
			continue
		}
		if taken {
			selected = append(selected, flow)
		}
	}
	if len(selected) == 0 && defaultFlowId != "" {
		for i := range flows {
			if flows[i].Id == defaultFlowId {
				selected = append(selected, &flows[i])
			}
		}
	}
	if len(selected) == 0 {
		return nil, newEngineErrorf("no outgoing sequence flow satisfied and no default flow declared")
	}
	return selected, nil
}

// selectOutgoingFlows filters the outgoing flows of a non-gateway node:
// unconditional flows always fire, conditioned flows fire when they hold.
func selectOutgoingFlows(flows []bpmn20.TSequenceFlow,
	variableContext map[string]any, onFailure expressionFailureHandler) ([]*bpmn20.TSequenceFlow, error) {
	var selected []*bpmn20.TSequenceFlow
	for i := range flows {
		flow := &flows[i]
		if !flow.HasConditionExpression() {
			selected = append(selected, flow)
			continue
		}
		taken, err := evaluateBooleanExpression(flow.GetConditionExpression(), variableContext)
		if err != nil {
			onFailure(flow.GetConditionExpression(), err)
			continue
		}
		if taken {
			selected = append(selected, flow)
		}
	}
	if len(selected) == 0 {
		return nil, newEngineErrorf("no outgoing sequence flow satisfied")
	}
	return selected, nil
}

package bpmn

import (
	"context"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/notifier"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

func processOf(instance *runtime.ProcessInstance) *bpmn20.TProcess {
	return &instance.Definition.Definitions.Process
}

// handleArrival moves a token onto a node. Pass-through nodes return a
// leave command; tasks, catch events and unsatisfied joins park the token.
func (e *Engine) handleArrival(ctx context.Context, batch storage.Batch, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, c arrivalCommand) ([]command, sideEffects, error) {
	var fx sideEffects
	element := c.element
	token := c.token

	switch element.GetType() {
	case bpmn20.ElementTypeStartEvent, bpmn20.ElementTypeExclusiveGateway, bpmn20.ElementTypeInclusiveGateway:
		if err := saveToken(ctx, batch, tokens, token); err != nil {
			return nil, fx, err
		}
		e.notifier.ActivityActivated(e.activityEvent(instance, &token))
		return []command{leaveCommand{token: token, element: element}}, fx, nil

	case bpmn20.ElementTypeEndEvent:
		e.notifier.ActivityActivated(e.activityEvent(instance, &token))
		token.State = runtime.TokenStateCompleted
		if err := saveToken(ctx, batch, tokens, token); err != nil {
			return nil, fx, err
		}
		e.notifier.ActivityCompleted(e.activityEvent(instance, &token))
		return nil, fx, nil

	case bpmn20.ElementTypeParallelGateway:
		return e.handleParallelGateway(ctx, batch, instance, tokens, c)

	case bpmn20.ElementTypeUserTask, bpmn20.ElementTypeServiceTask, bpmn20.ElementTypeScriptTask:
		task, ok := element.(bpmn20.TaskElement)
		if !ok {
			return []command{errorCommand{elementId: element.GetId(), err: newEngineErrorf("element %s is not a task", element.GetId())}}, fx, nil
		}
		job, err := e.createJob(ctx, batch, instance, tokens, task, token)
		if err != nil {
			return nil, fx, err
		}
		if element.GetType() == bpmn20.ElementTypeScriptTask {
			fx.dispatch = append(fx.dispatch, scriptDispatch{jobKey: job.Key, processInstanceKey: instance.Key})
		}
		return nil, fx, nil

	case bpmn20.ElementTypeIntermediateCatchEvent:
		ice, ok := element.(*bpmn20.TIntermediateCatchEvent)
		if !ok {
			return []command{errorCommand{elementId: element.GetId(), err: newEngineErrorf("element %s is not an intermediate catch event", element.GetId())}}, fx, nil
		}
		return e.handleIntermediateCatchEvent(ctx, batch, instance, tokens, ice, token, &fx)

	default:
		return []command{errorCommand{
			elementId: element.GetId(),
			err:       newEngineErrorf("unsupported element type %s at %s", element.GetType(), element.GetId()),
		}}, fx, nil
	}
}

// handleParallelGateway buffers join arrivals per inbound flow on the
// instance; the gateway fires once every inbound flow has arrived. A
// gateway with a single inbound flow is a pure fork and passes through.
func (e *Engine) handleParallelGateway(ctx context.Context, batch storage.Batch, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, c arrivalCommand) ([]command, sideEffects, error) {
	var fx sideEffects
	element := c.element
	token := c.token
	incoming := element.GetIncomingAssociation()

	if len(incoming) <= 1 {
		if err := saveToken(ctx, batch, tokens, token); err != nil {
			return nil, fx, err
		}
		e.notifier.ActivityActivated(e.activityEvent(instance, &token))
		return []command{leaveCommand{token: token, element: element}}, fx, nil
	}

	instance.RecordGatewayArrival(element.GetId(), c.inboundFlowId)
	e.notifier.ActivityActivated(e.activityEvent(instance, &token))

	if !instance.GatewayArrivalsComplete(element.GetId(), incoming) {
		token.State = runtime.TokenStateWaiting
		if err := saveToken(ctx, batch, tokens, token); err != nil {
			return nil, fx, err
		}
		return nil, fx, nil
	}

	// join fires: consume the parked sibling tokens and continue with the
	// arriving one
	for _, parked := range tokens {
		if parked.ElementId != element.GetId() || parked.State != runtime.TokenStateWaiting {
			continue
		}
		parked.State = runtime.TokenStateCompleted
		if err := batch.SaveToken(ctx, *parked); err != nil {
			return nil, fx, err
		}
		e.notifier.ActivityCompleted(e.activityEvent(instance, parked))
	}
	instance.ClearGatewayArrivals(element.GetId())
	if err := saveToken(ctx, batch, tokens, token); err != nil {
		return nil, fx, err
	}
	return []command{leaveCommand{token: token, element: element}}, fx, nil
}

// handleIntermediateCatchEvent parks the token on a subscription or timer.
// A buffered message that already matches is consumed immediately.
func (e *Engine) handleIntermediateCatchEvent(ctx context.Context, batch storage.Batch, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, ice *bpmn20.TIntermediateCatchEvent, token runtime.Token, fx *sideEffects) ([]command, sideEffects, error) {
	e.notifier.ActivityActivated(e.activityEvent(instance, &token))

	if ice.IsTimerEvent() {
		timer, err := e.createTimer(instance, ice, token)
		if err != nil {
			return []command{errorCommand{elementId: ice.Id, err: err}}, *fx, nil
		}
		token.State = runtime.TokenStateWaiting
		if err := saveToken(ctx, batch, tokens, token); err != nil {
			return nil, *fx, err
		}
		if err := batch.SaveTimer(ctx, timer); err != nil {
			return nil, *fx, err
		}
		fx.timers = append(fx.timers, timer)
		return nil, *fx, nil
	}

	if ice.IsMessageEvent() {
		name := e.messageNameFor(instance, ice)
		if caught := consumeCaughtEvent(instance, name); caught != nil {
			if err := e.applyCaughtEvent(instance, ice, caught); err != nil {
				e.notifyExpressionFailed(instance, ice.Id, "", err)
			}
			if err := saveToken(ctx, batch, tokens, token); err != nil {
				return nil, *fx, err
			}
			e.notifier.IntermediateCatchEventArrived(notifier.CatchEventArrivedEvent{
				Event:     e.instanceEvent(instance),
				ElementId: ice.Id,
				EventName: name,
				TokenKey:  token.Key,
			})
			return []command{leaveCommand{token: token, element: ice}}, *fx, nil
		}
		token.State = runtime.TokenStateWaiting
		if err := saveToken(ctx, batch, tokens, token); err != nil {
			return nil, *fx, err
		}
		subscription := runtime.MessageSubscription{
			Key:                  e.generateKey(),
			ElementId:            ice.Id,
			ProcessDefinitionKey: instance.DefinitionKey,
			ProcessInstanceKey:   instance.Key,
			Name:                 name,
			State:                runtime.SubscriptionStateActive,
			CreatedAt:            token.CreatedAt,
			Token:                token,
		}
		if err := batch.SaveMessageSubscription(ctx, subscription); err != nil {
			return nil, *fx, err
		}
		return nil, *fx, nil
	}

	return []command{errorCommand{
		elementId: ice.Id,
		err:       newEngineErrorf("intermediate catch event %s has no supported event definition", ice.Id),
	}}, *fx, nil
}

// handleLeave consumes the token at a finished node and selects the
// outgoing flows according to the node's semantics.
func (e *Engine) handleLeave(ctx context.Context, batch storage.Batch, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, c leaveCommand) ([]command, error) {
	element := c.element
	token := c.token
	process := processOf(instance)
	flows := bpmn20.FindSequenceFlows(&process.SequenceFlows, element.GetOutgoingAssociation())
	variables := instance.DataStore.Variables()
	onFailure := func(expression string, err error) {
		e.notifyExpressionFailed(instance, element.GetId(), expression, err)
	}

	var selected []*bpmn20.TSequenceFlow
	var selectionErr error
	switch element.GetType() {
	case bpmn20.ElementTypeExclusiveGateway:
		gateway := element.(bpmn20.GatewayElement)
		flow, err := exclusivelySelectFlow(flows, gateway.GetDefaultFlowId(), variables, onFailure)
		if err != nil {
			selectionErr = err
		} else {
			selected = []*bpmn20.TSequenceFlow{flow}
		}
	case bpmn20.ElementTypeInclusiveGateway:
		gateway := element.(bpmn20.GatewayElement)
		selected, selectionErr = inclusivelySelectFlows(flows, gateway.GetDefaultFlowId(), variables, onFailure)
	case bpmn20.ElementTypeParallelGateway:
		for i := range flows {
			selected = append(selected, &flows[i])
		}
	default:
		if len(flows) == 0 {
			// implicit end: the token dies here
			token.State = runtime.TokenStateCompleted
			if err := saveToken(ctx, batch, tokens, token); err != nil {
				return nil, err
			}
			e.notifier.ActivityCompleted(e.activityEvent(instance, &token))
			return nil, nil
		}
		selected, selectionErr = selectOutgoingFlows(flows, variables, onFailure)
	}
	if selectionErr != nil {
		return []command{errorCommand{elementId: element.GetId(), err: selectionErr}}, nil
	}

	token.State = runtime.TokenStateCompleted
	if err := saveToken(ctx, batch, tokens, token); err != nil {
		return nil, err
	}
	e.notifier.ActivityCompleted(e.activityEvent(instance, &token))

	next := make([]command, 0, len(selected))
	for _, flow := range selected {
		next = append(next, flowCommand{sourceToken: token, sourceElement: element, flow: flow})
	}
	return next, nil
}

// handleFlow traverses one sequence flow: data updates attached to the flow
// are applied and a fresh token arrives at the target node.
func (e *Engine) handleFlow(ctx context.Context, batch storage.Batch, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, c flowCommand) ([]command, error) {
	flow := c.flow
	e.applyUpdateData(instance, c.sourceElement, flow)

	target := processOf(instance).GetFlowNodeById(flow.TargetRef)
	if target == nil {
		return []command{errorCommand{
			elementId: c.sourceElement.GetId(),
			err:       &bpmn20.ElementNotFoundError{Id: flow.TargetRef, Context: "targetRef of flow " + flow.Id},
		}}, nil
	}

	token := e.newToken(instance, target.GetId(), target.GetType())
	if err := saveToken(ctx, batch, tokens, token); err != nil {
		return nil, err
	}
	return []command{arrivalCommand{token: token, element: target, inboundFlowId: flow.Id}}, nil
}

// applyUpdateData evaluates the flow's data-update expressions and folds the
// results into the instance data store. Evaluation failure is recoverable:
// no update is applied and the transition proceeds.
func (e *Engine) applyUpdateData(instance *runtime.ProcessInstance, source bpmn20.FlowNode, flow *bpmn20.TSequenceFlow) {
	if len(flow.UpdateData) == 0 {
		return
	}
	variables := instance.DataStore.Variables()
	updates := make(map[string]any, len(flow.UpdateData))
	keys := make([]string, 0, len(flow.UpdateData))
	for _, set := range flow.UpdateData {
		value, err := evaluateExpression(set.Source, variables)
		if err != nil {
			e.notifyExpressionFailed(instance, source.GetId(), set.Source, err)
			return
		}
		updates[set.Target] = value
		keys = append(keys, set.Target)
	}
	for key, value := range updates {
		instance.SetVariable(key, value)
	}
	e.notifier.ConditionedTransitionApplied(notifier.ConditionedTransitionEvent{
		Event:       e.instanceEvent(instance),
		FlowId:      flow.Id,
		SourceId:    flow.SourceRef,
		TargetId:    flow.TargetRef,
		UpdatedKeys: keys,
	})
}

func (e *Engine) notifyExpressionFailed(instance *runtime.ProcessInstance, elementId string, expression string, err error) {
	e.logger.Warn("expression evaluation failed", "instanceKey", instance.Key, "elementId", elementId, "err", err)
	e.notifier.ExpressionFailed(notifier.ExpressionFailedEvent{
		Event:      e.instanceEvent(instance),
		ElementId:  elementId,
		Expression: expression,
		Reason:     err.Error(),
	})
}

package bpmn

import (
	"context"
	"errors"
	"time"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/notifier"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// PublishMessage delivers a named message to a process instance. The event
// is buffered on the instance; when a message catch event is already
// waiting for the name, its token advances immediately, otherwise a later
// arrival at a matching catch event consumes the buffered message.
func (e *Engine) PublishMessage(ctx context.Context, processInstanceKey int64, messageName string, variables map[string]any) error {
	store := e.storeFor(processInstanceKey)
	unlock := e.lockInstance(processInstanceKey)
	instance, err := e.findInstance(ctx, store, processInstanceKey)
	if err != nil {
		unlock()
		return err
	}
	if instance.State != runtime.InstanceStateActive {
		unlock()
		return newInvalidStateErrorf("process instance %d is %s, cannot receive message %q", processInstanceKey, instance.State, messageName)
	}
	instance.CaughtEvents = append(instance.CaughtEvents, runtime.CaughtEvent{
		Name:      messageName,
		CaughtAt:  time.Now(),
		Variables: variables,
	})
	subscriptions, err := store.FindProcessInstanceMessageSubscriptions(ctx, processInstanceKey, runtime.SubscriptionStateActive)
	if err != nil {
		unlock()
		return errors.Join(newEngineErrorf("failed to find subscriptions for instance %d", processInstanceKey), err)
	}
	var queue []command
	for i := range subscriptions {
		if subscriptions[i].Name != messageName {
			continue
		}
		if cmd, ok := e.correlateSubscription(ctx, store, instance, &subscriptions[i]); ok {
			queue = append(queue, cmd)
		}
	}
	fx, err := e.run(ctx, store, instance, queue)
	unlock()
	if err != nil {
		return errors.Join(newEngineErrorf("failed to deliver message %q to instance %d", messageName, processInstanceKey), err)
	}
	e.afterRun(ctx, instance, fx)
	return nil
}

// correlateSubscription matches an open subscription against the buffered
// caught events. On a match the event is consumed, the subscription closed
// and the parked token released.
func (e *Engine) correlateSubscription(ctx context.Context, store storage.Storage, instance *runtime.ProcessInstance, subscription *runtime.MessageSubscription) (command, bool) {
	caught := consumeCaughtEvent(instance, subscription.Name)
	if caught == nil {
		return nil, false
	}
	element := processOf(instance).GetFlowNodeById(subscription.ElementId)
	ice, ok := element.(*bpmn20.TIntermediateCatchEvent)
	if !ok {
		return errorCommand{
			elementId: subscription.ElementId,
			err:       &bpmn20.ElementNotFoundError{Id: subscription.ElementId, Context: "message subscription " + subscription.Name},
		}, true
	}
	if err := e.applyCaughtEvent(instance, ice, caught); err != nil {
		e.notifyExpressionFailed(instance, ice.Id, "", err)
	}
	subscription.State = runtime.SubscriptionStateCompleted
	if err := store.SaveMessageSubscription(ctx, *subscription); err != nil {
		e.logger.Error("failed to complete subscription", "subscriptionKey", subscription.Key, "err", err)
	}
	e.notifier.IntermediateCatchEventArrived(notifier.CatchEventArrivedEvent{
		Event:     e.instanceEvent(instance),
		ElementId: subscription.ElementId,
		EventName: subscription.Name,
		TokenKey:  subscription.Token.Key,
	})
	return leaveCommand{token: subscription.Token, element: ice}, true
}

// consumeCaughtEvent returns the oldest unconsumed buffered event with the
// given name and marks it consumed.
func consumeCaughtEvent(instance *runtime.ProcessInstance, name string) *runtime.CaughtEvent {
	for i := range instance.CaughtEvents {
		event := &instance.CaughtEvents[i]
		if event.IsConsumed || event.Name != name {
			continue
		}
		event.IsConsumed = true
		return event
	}
	return nil
}

// applyCaughtEvent folds message variables into the instance data store,
// through the catch event's output mapping when one is declared.
func (e *Engine) applyCaughtEvent(instance *runtime.ProcessInstance, ice *bpmn20.TIntermediateCatchEvent, caught *runtime.CaughtEvent) error {
	if len(ice.Output) == 0 {
		if err := instance.DataStore.Merge(caught.Variables); err != nil {
			return errors.Join(newEngineErrorf("failed to merge message variables at %s", ice.Id), err)
		}
		return nil
	}
	local := make(map[string]any, len(instance.DataStore.Variables())+len(caught.Variables))
	for k, v := range instance.DataStore.Variables() {
		local[k] = v
	}
	for k, v := range caught.Variables {
		local[k] = v
	}
	for _, mapping := range ice.Output {
		value, err := evaluateExpression(mapping.Source, local)
		if err != nil {
			e.notifyExpressionFailed(instance, ice.Id, mapping.Source, err)
			continue
		}
		instance.SetVariable(mapping.Target, value)
	}
	return nil
}

// messageNameFor resolves the message name a catch event waits for. A
// dangling messageRef (recorded as a load warning) falls back to the raw
// reference so the event stays addressable.
func (e *Engine) messageNameFor(instance *runtime.ProcessInstance, ice *bpmn20.TIntermediateCatchEvent) string {
	name := instance.Definition.Definitions.FindMessageNameById(ice.MessageEventDefinition.MessageRef)
	if name == "" {
		return ice.MessageEventDefinition.MessageRef
	}
	return name
}

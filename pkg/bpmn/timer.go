package bpmn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/senseyeio/duration"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/notifier"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// createTimer materializes a timer catch event: the ISO-8601 duration is
// resolved against the current time.
func (e *Engine) createTimer(instance *runtime.ProcessInstance, ice *bpmn20.TIntermediateCatchEvent, token runtime.Token) (runtime.Timer, error) {
	text := strings.TrimSpace(ice.TimerEventDefinition.TimeDuration.XMLText)
	durationVal, err := duration.ParseISO8601(text)
	if err != nil {
		return runtime.Timer{}, errors.Join(
			newEngineErrorf("failed to parse timeDuration %q of catch event %s", text, ice.Id), err)
	}
	now := time.Now()
	dueAt := durationVal.Shift(now)
	return runtime.Timer{
		Key:                  e.generateKey(),
		ElementId:            ice.Id,
		ProcessDefinitionKey: instance.DefinitionKey,
		ProcessInstanceKey:   instance.Key,
		State:                runtime.TimerStateCreated,
		CreatedAt:            now,
		DueAt:                dueAt,
		Duration:             dueAt.Sub(now),
		Token:                token,
	}, nil
}

// triggerTimer fires one due timer: the parked token leaves the catch
// event. Stale handles (cancelled or already triggered timers) are ignored.
func (e *Engine) triggerTimer(ctx context.Context, timer runtime.Timer) {
	store := e.storeFor(timer.ProcessInstanceKey)
	unlock := e.lockInstance(timer.ProcessInstanceKey)

	current, ok := e.findCreatedTimer(ctx, store, timer)
	if !ok {
		unlock()
		return
	}
	instance, err := e.findInstance(ctx, store, timer.ProcessInstanceKey)
	if err != nil {
		unlock()
		e.logger.Error("failed to load instance for timer", "timerKey", timer.Key, "err", err)
		return
	}
	if instance.State != runtime.InstanceStateActive {
		current.State = runtime.TimerStateCancelled
		if err := store.SaveTimer(ctx, *current); err != nil {
			e.logger.Error("failed to cancel timer", "timerKey", timer.Key, "err", err)
		}
		unlock()
		return
	}
	var queue []command
	if cmd, fired := e.fireTimer(ctx, store, instance, current); fired {
		queue = append(queue, cmd)
	}
	fx, err := e.run(ctx, store, instance, queue)
	unlock()
	if err != nil {
		e.logger.Error("failed to continue instance after timer", "timerKey", timer.Key, "err", err)
		return
	}
	e.afterRun(ctx, instance, fx)
}

// fireTimer marks the timer triggered and releases the parked token.
// Callers must hold the instance lock.
func (e *Engine) fireTimer(ctx context.Context, store storage.Storage, instance *runtime.ProcessInstance, timer *runtime.Timer) (command, bool) {
	element := processOf(instance).GetFlowNodeById(timer.ElementId)
	if element == nil {
		return errorCommand{
			elementId: timer.ElementId,
			err:       &bpmn20.ElementNotFoundError{Id: timer.ElementId, Context: "timer " + timer.ElementId},
		}, true
	}
	timer.State = runtime.TimerStateTriggered
	if err := store.SaveTimer(ctx, *timer); err != nil {
		e.logger.Error("failed to save triggered timer", "timerKey", timer.Key, "err", err)
		return nil, false
	}
	e.notifier.IntermediateCatchEventArrived(notifier.CatchEventArrivedEvent{
		Event:     e.instanceEvent(instance),
		ElementId: timer.ElementId,
		EventName: timer.ElementId,
		TokenKey:  timer.Token.Key,
	})
	return leaveCommand{token: timer.Token, element: element}, true
}

func (e *Engine) findCreatedTimer(ctx context.Context, store storage.Storage, timer runtime.Timer) (*runtime.Timer, bool) {
	timers, err := store.FindProcessInstanceTimers(ctx, timer.ProcessInstanceKey, runtime.TimerStateCreated)
	if err != nil {
		e.logger.Error("failed to load timers", "instanceKey", timer.ProcessInstanceKey, "err", err)
		return nil, false
	}
	for i := range timers {
		if timers[i].Key == timer.Key {
			return &timers[i], true
		}
	}
	return nil, false
}

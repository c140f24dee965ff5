package bpmn

import (
	"context"
	"errors"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
)

// SnapshotInstance captures the complete persisted state of an instance:
// data store, caught events, partial join arrivals, tokens, jobs,
// subscriptions and timers. The snapshot round-trips through
// runtime.InstanceSnapshot.Marshal and RestoreInstance.
func (e *Engine) SnapshotInstance(ctx context.Context, processInstanceKey int64) (runtime.InstanceSnapshot, error) {
	store := e.storeFor(processInstanceKey)
	unlock := e.lockInstance(processInstanceKey)
	defer unlock()

	instance, err := store.FindProcessInstanceByKey(ctx, processInstanceKey)
	if err != nil {
		return runtime.InstanceSnapshot{}, errors.Join(newEngineErrorf("failed to find process instance %d", processInstanceKey), err)
	}
	snapshot := runtime.InstanceSnapshot{Instance: instance}
	if snapshot.Tokens, err = store.GetTokensForProcessInstance(ctx, processInstanceKey); err != nil {
		return runtime.InstanceSnapshot{}, errors.Join(newEngineErrorf("failed to snapshot tokens of instance %d", processInstanceKey), err)
	}
	if snapshot.Jobs, err = store.FindPendingProcessInstanceJobs(ctx, processInstanceKey); err != nil {
		return runtime.InstanceSnapshot{}, errors.Join(newEngineErrorf("failed to snapshot jobs of instance %d", processInstanceKey), err)
	}
	if snapshot.Subscriptions, err = store.FindProcessInstanceMessageSubscriptions(ctx, processInstanceKey, runtime.SubscriptionStateActive); err != nil {
		return runtime.InstanceSnapshot{}, errors.Join(newEngineErrorf("failed to snapshot subscriptions of instance %d", processInstanceKey), err)
	}
	if snapshot.Timers, err = store.FindProcessInstanceTimers(ctx, processInstanceKey, runtime.TimerStateCreated); err != nil {
		return runtime.InstanceSnapshot{}, errors.Join(newEngineErrorf("failed to snapshot timers of instance %d", processInstanceKey), err)
	}
	return snapshot, nil
}

// RestoreInstance writes a snapshot back into the configured backend and
// re-arms its pending timers. The definition referenced by the snapshot
// must already be deployed. Restored instances are always persistent.
func (e *Engine) RestoreInstance(ctx context.Context, snapshot runtime.InstanceSnapshot) (*runtime.ProcessInstance, error) {
	instance := snapshot.Instance
	definition, err := e.loadDefinition(ctx, instance.DefinitionKey)
	if err != nil {
		return nil, err
	}
	instance.Definition = definition
	instance.NonPersistent = false

	unlock := e.lockInstance(instance.Key)
	defer unlock()

	batch := e.persistence.NewBatch()
	if err := batch.SaveProcessInstance(ctx, instance); err != nil {
		return nil, errors.Join(newEngineErrorf("failed to restore process instance %d", instance.Key), err)
	}
	for _, token := range snapshot.Tokens {
		if err := batch.SaveToken(ctx, token); err != nil {
			return nil, errors.Join(newEngineErrorf("failed to restore token %d", token.Key), err)
		}
	}
	for _, job := range snapshot.Jobs {
		if err := batch.SaveJob(ctx, job); err != nil {
			return nil, errors.Join(newEngineErrorf("failed to restore job %d", job.Key), err)
		}
	}
	for _, subscription := range snapshot.Subscriptions {
		if err := batch.SaveMessageSubscription(ctx, subscription); err != nil {
			return nil, errors.Join(newEngineErrorf("failed to restore subscription %d", subscription.Key), err)
		}
	}
	for _, timer := range snapshot.Timers {
		if err := batch.SaveTimer(ctx, timer); err != nil {
			return nil, errors.Join(newEngineErrorf("failed to restore timer %d", timer.Key), err)
		}
	}
	if err := batch.Flush(ctx); err != nil {
		return nil, errors.Join(newEngineErrorf("failed to flush restore batch for instance %d", instance.Key), err)
	}
	for _, timer := range snapshot.Timers {
		e.timers.arm(timer)
	}
	return &instance, nil
}

package bpmn

import (
	"context"
	"errors"
	"time"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/script"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// createJob parks the token on a task and records the job waiting for
// external (or script worker) completion.
func (e *Engine) createJob(ctx context.Context, batch storage.Batch, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, task bpmn20.TaskElement, token runtime.Token) (runtime.Job, error) {
	token.State = runtime.TokenStateWaiting
	var candidateGroups []string
	if userTask, ok := task.(*bpmn20.TUserTask); ok {
		token.Assignee = userTask.GetAssignee()
		candidateGroups = userTask.GetCandidateGroups()
	}
	if err := saveToken(ctx, batch, tokens, token); err != nil {
		return runtime.Job{}, err
	}
	job := runtime.Job{
		Key:                e.generateKey(),
		ElementId:          task.GetId(),
		ElementInstanceKey: token.ElementInstanceKey,
		ProcessInstanceKey: instance.Key,
		Type:               task.GetTaskType(),
		State:              runtime.JobStateActive,
		Assignee:           token.Assignee,
		CandidateGroups:    candidateGroups,
		CreatedAt:          time.Now(),
		Token:              token,
	}
	if err := batch.SaveJob(ctx, job); err != nil {
		return runtime.Job{}, err
	}
	e.notifier.ActivityActivated(e.activityEvent(instance, &token))
	return job, nil
}

// findJob locates a job and the store it lives in, searching the dry-run
// scratch stores after the configured backend.
func (e *Engine) findJob(ctx context.Context, jobKey int64) (runtime.Job, storage.Storage, error) {
	job, err := e.persistence.FindJobByKey(ctx, jobKey)
	if err == nil {
		return job, e.persistence, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return runtime.Job{}, nil, err
	}
	var found *runtime.Job
	var foundStore storage.Storage
	e.ephemeral.Range(func(_, value any) bool {
		store := value.(storage.Storage)
		if j, err := store.FindJobByKey(ctx, jobKey); err == nil {
			found = &j
			foundStore = store
			return false
		}
		return true
	})
	if found == nil {
		return runtime.Job{}, nil, errors.Join(newEngineErrorf("job %d not found", jobKey), storage.ErrNotFound)
	}
	return *found, foundStore, nil
}

// CompleteJobByKey finishes a parked task: the output variables are folded
// into the instance data store (through the task's output mapping when one
// is declared) and the token leaves the node.
func (e *Engine) CompleteJobByKey(ctx context.Context, jobKey int64, variables map[string]any) error {
	job, store, err := e.findJob(ctx, jobKey)
	if err != nil {
		return err
	}
	unlock := e.lockInstance(job.ProcessInstanceKey)
	instance, err := e.findInstance(ctx, store, job.ProcessInstanceKey)
	if err != nil {
		unlock()
		return err
	}
	if instance.State != runtime.InstanceStateActive {
		unlock()
		return newInvalidStateErrorf("process instance %d is %s, cannot complete job %d", instance.Key, instance.State, jobKey)
	}
	job, err = store.FindJobByKey(ctx, jobKey)
	if err != nil {
		unlock()
		return err
	}
	if job.State != runtime.JobStateActive {
		unlock()
		return newInvalidStateErrorf("job %d is %s, not active", jobKey, job.State)
	}
	element := processOf(instance).GetFlowNodeById(job.ElementId)
	if element == nil {
		unlock()
		return &bpmn20.ElementNotFoundError{Id: job.ElementId, Context: "job " + job.Type}
	}
	if task, ok := element.(bpmn20.TaskElement); ok {
		if err := e.applyJobOutput(instance, task, variables); err != nil {
			unlock()
			return err
		}
	}
	job.State = runtime.JobStateCompleted
	if err := store.SaveJob(ctx, job); err != nil {
		unlock()
		return errors.Join(newEngineErrorf("failed to save job %d", jobKey), err)
	}
	fx, err := e.run(ctx, store, instance, []command{leaveCommand{token: job.Token, element: element}})
	unlock()
	if err != nil {
		return errors.Join(newEngineErrorf("failed to continue instance %d after job %d", instance.Key, jobKey), err)
	}
	e.afterRun(ctx, instance, fx)
	return nil
}

// FailJobByKey fails a parked task and moves the whole instance to ERROR.
func (e *Engine) FailJobByKey(ctx context.Context, jobKey int64, reason string) error {
	job, store, err := e.findJob(ctx, jobKey)
	if err != nil {
		return err
	}
	unlock := e.lockInstance(job.ProcessInstanceKey)
	defer unlock()
	instance, err := e.findInstance(ctx, store, job.ProcessInstanceKey)
	if err != nil {
		return err
	}
	if instance.State != runtime.InstanceStateActive {
		return newInvalidStateErrorf("process instance %d is %s, cannot fail job %d", instance.Key, instance.State, jobKey)
	}
	job, err = store.FindJobByKey(ctx, jobKey)
	if err != nil {
		return err
	}
	if job.State != runtime.JobStateActive {
		return newInvalidStateErrorf("job %d is %s, not active", jobKey, job.State)
	}
	job.State = runtime.JobStateFailed
	if err := store.SaveJob(ctx, job); err != nil {
		return errors.Join(newEngineErrorf("failed to save job %d", jobKey), err)
	}
	token := job.Token
	token.State = runtime.TokenStateFailed
	if err := store.SaveToken(ctx, token); err != nil {
		return errors.Join(newEngineErrorf("failed to save token %d", token.Key), err)
	}
	_, err = e.run(ctx, store, instance, []command{errorCommand{
		elementId: job.ElementId,
		err:       newEngineErrorf("job %d (%s) failed: %s", jobKey, job.Type, reason),
	}})
	if err != nil {
		return errors.Join(newEngineErrorf("failed to fail instance %d", instance.Key), err)
	}
	return nil
}

// applyJobOutput folds task output into the instance data store. With an
// output mapping declared, only mapped targets are written; the mapping
// sources are evaluated against the instance variables overlaid with the
// job output. Without a mapping the output is merged wholesale.
func (e *Engine) applyJobOutput(instance *runtime.ProcessInstance, task bpmn20.TaskElement, output map[string]any) error {
	mappings := task.GetOutputMapping()
	if len(mappings) == 0 {
		if err := instance.DataStore.Merge(output); err != nil {
			return errors.Join(newEngineErrorf("failed to merge job output for task %s", task.GetId()), err)
		}
		return nil
	}
	local := make(map[string]any, len(instance.DataStore.Variables())+len(output))
	for k, v := range instance.DataStore.Variables() {
		local[k] = v
	}
	for k, v := range output {
		local[k] = v
	}
	for _, mapping := range mappings {
		value, err := evaluateExpression(mapping.Source, local)
		if err != nil {
			e.notifyExpressionFailed(instance, task.GetId(), mapping.Source, err)
			continue
		}
		instance.SetVariable(mapping.Target, value)
	}
	return nil
}

// FindActiveJobsByType lists active jobs waiting for an external worker.
func (e *Engine) FindActiveJobsByType(ctx context.Context, jobType string) ([]runtime.Job, error) {
	return e.persistence.FindActiveJobsByType(ctx, jobType)
}

func (e *Engine) scriptWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dispatch := <-e.dispatchQueue:
			e.executeScriptJob(ctx, dispatch)
		}
	}
}

// executeScriptJob runs one script job and feeds its outcome back into the
// engine. Script failures fail the job; they never panic the worker.
func (e *Engine) executeScriptJob(ctx context.Context, dispatch scriptDispatch) {
	store := e.storeFor(dispatch.processInstanceKey)

	unlock := e.lockInstance(dispatch.processInstanceKey)
	job, err := store.FindJobByKey(ctx, dispatch.jobKey)
	if err != nil || job.State != runtime.JobStateActive {
		unlock()
		return
	}
	instance, err := e.findInstance(ctx, store, dispatch.processInstanceKey)
	if err != nil || instance.State != runtime.InstanceStateActive {
		unlock()
		return
	}
	task := processOf(instance).GetTaskById(job.ElementId)
	scriptTask, ok := task.(*bpmn20.TScriptTask)
	if !ok {
		unlock()
		return
	}
	data := make(map[string]any, len(instance.DataStore.Variables()))
	for k, v := range instance.DataStore.Variables() {
		data[k] = v
	}
	unlock()

	runner, err := e.scripts.RunnerFor(job.Type)
	if err != nil {
		e.failScriptJob(ctx, job.Key, err)
		return
	}
	result, err := runner.Run(ctx, script.Request{
		Code:    scriptTask.GetScript(),
		Data:    data,
		Config:  scriptConfig(scriptTask),
		Timeout: e.scriptTimeout,
		User:    script.UserRef{Id: job.Assignee},
	})
	if err != nil {
		e.failScriptJob(ctx, job.Key, err)
		return
	}
	output := result.Output
	if resultVariable := scriptTask.GetResultVariable(); resultVariable != "" {
		output = map[string]any{resultVariable: unwrapScriptOutput(result.Output)}
	}
	if err := e.CompleteJobByKey(ctx, job.Key, output); err != nil {
		e.logger.Error("failed to complete script job", "jobKey", job.Key, "err", err)
	}
}

func (e *Engine) failScriptJob(ctx context.Context, jobKey int64, cause error) {
	if err := e.FailJobByKey(ctx, jobKey, cause.Error()); err != nil {
		e.logger.Error("failed to fail script job", "jobKey", jobKey, "err", err)
	}
}

func scriptConfig(task *bpmn20.TScriptTask) map[string]string {
	properties := task.ScriptDefinition.Properties
	if len(properties) == 0 {
		return nil
	}
	config := make(map[string]string, len(properties))
	for _, property := range properties {
		config[property.Name] = property.Value
	}
	return config
}

// unwrapScriptOutput undoes the runner's single-value wrapping when the
// task routes its whole output into one result variable.
func unwrapScriptOutput(output map[string]any) any {
	if len(output) == 1 {
		if value, ok := output["result"]; ok {
			return value
		}
	}
	return output
}

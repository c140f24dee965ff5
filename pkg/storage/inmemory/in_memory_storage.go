// Package inmemory keeps all engine state in maps. It backs the test suite
// and single-node deployments that persist through snapshots instead of a
// database.
package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// Storage keeps process information in memory,
// please use NewStorage to create a new object of this type.
type Storage struct {
	mu                   sync.RWMutex
	ProcessDefinitions   map[int64]runtime.ProcessDefinition
	ProcessInstances     map[int64]runtime.ProcessInstance
	Tokens               map[int64]runtime.Token
	Jobs                 map[int64]runtime.Job
	MessageSubscriptions map[int64]runtime.MessageSubscription
	Timers               map[int64]runtime.Timer
	Comments             map[int64]runtime.Comment
}

func NewStorage() *Storage {
	return &Storage{
		ProcessDefinitions:   make(map[int64]runtime.ProcessDefinition),
		ProcessInstances:     make(map[int64]runtime.ProcessInstance),
		Tokens:               make(map[int64]runtime.Token),
		Jobs:                 make(map[int64]runtime.Job),
		MessageSubscriptions: make(map[int64]runtime.MessageSubscription),
		Timers:               make(map[int64]runtime.Timer),
		Comments:             make(map[int64]runtime.Comment),
	}
}

var _ storage.Storage = &Storage{}

func (mem *Storage) NewBatch() storage.Batch {
	return &Batch{
		db:        mem,
		stmtToRun: make([]func() error, 0, 10),
	}
}

func (mem *Storage) FindLatestProcessDefinitionById(ctx context.Context, processDefinitionId string) (runtime.ProcessDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var res runtime.ProcessDefinition
	found := false
	for _, def := range mem.ProcessDefinitions {
		if def.BpmnProcessId != processDefinitionId {
			continue
		}
		if found && def.Version < res.Version {
			continue
		}
		found = true
		res = def
	}
	if !found {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindProcessDefinitionByKey(ctx context.Context, processDefinitionKey int64) (runtime.ProcessDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.ProcessDefinitions[processDefinitionKey]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindProcessDefinitionsById(ctx context.Context, processId string) ([]runtime.ProcessDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.ProcessDefinition, 0)
	for _, def := range mem.ProcessDefinitions {
		if def.BpmnProcessId != processId {
			continue
		}
		res = append(res, def)
	}
	slices.SortFunc(res, func(a, b runtime.ProcessDefinition) int {
		return int(a.Version - b.Version)
	})
	return res, nil
}

func (mem *Storage) SaveProcessDefinition(ctx context.Context, definition runtime.ProcessDefinition) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.ProcessDefinitions[definition.Key] = definition
	return nil
}

func (mem *Storage) FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.ProcessInstances[processInstanceKey]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.ProcessInstances[processInstance.Key] = processInstance
	return nil
}

func (mem *Storage) GetTokensForProcessInstance(ctx context.Context, processInstanceKey int64) ([]runtime.Token, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Token, 0)
	for _, token := range mem.Tokens {
		if token.ProcessInstanceKey != processInstanceKey {
			continue
		}
		res = append(res, token)
	}
	slices.SortFunc(res, func(a, b runtime.Token) int {
		return int(a.Key - b.Key)
	})
	return res, nil
}

func (mem *Storage) GetRunningTokens(ctx context.Context) ([]runtime.Token, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Token, 0)
	for _, token := range mem.Tokens {
		if token.State.IsTerminal() {
			continue
		}
		res = append(res, token)
	}
	return res, nil
}

func (mem *Storage) SaveToken(ctx context.Context, token runtime.Token) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.Tokens[token.Key] = token
	return nil
}

func (mem *Storage) FindJobByKey(ctx context.Context, jobKey int64) (runtime.Job, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.Jobs[jobKey]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindActiveJobsByType(ctx context.Context, jobType string) ([]runtime.Job, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Job, 0)
	for _, job := range mem.Jobs {
		if job.State != runtime.JobStateActive {
			continue
		}
		if job.Type != jobType {
			continue
		}
		res = append(res, job)
	}
	slices.SortFunc(res, func(a, b runtime.Job) int {
		return int(a.Key - b.Key)
	})
	return res, nil
}

func (mem *Storage) FindPendingProcessInstanceJobs(ctx context.Context, processInstanceKey int64) ([]runtime.Job, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Job, 0)
	for _, job := range mem.Jobs {
		if job.ProcessInstanceKey != processInstanceKey {
			continue
		}
		if job.State != runtime.JobStateActive {
			continue
		}
		res = append(res, job)
	}
	return res, nil
}

func (mem *Storage) SaveJob(ctx context.Context, job runtime.Job) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.Jobs[job.Key] = job
	return nil
}

func (mem *Storage) FindProcessInstanceMessageSubscriptions(ctx context.Context, processInstanceKey int64, state runtime.SubscriptionState) ([]runtime.MessageSubscription, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.MessageSubscription, 0)
	for _, sub := range mem.MessageSubscriptions {
		if sub.ProcessInstanceKey != processInstanceKey {
			continue
		}
		if sub.State != state {
			continue
		}
		res = append(res, sub)
	}
	return res, nil
}

func (mem *Storage) SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.MessageSubscriptions[subscription.Key] = subscription
	return nil
}

func (mem *Storage) FindTimersTo(ctx context.Context, end time.Time) ([]runtime.Timer, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Timer, 0)
	for _, timer := range mem.Timers {
		if timer.State != runtime.TimerStateCreated {
			continue
		}
		if timer.DueAt.After(end) {
			continue
		}
		res = append(res, timer)
	}
	return res, nil
}

func (mem *Storage) FindProcessInstanceTimers(ctx context.Context, processInstanceKey int64, state runtime.TimerState) ([]runtime.Timer, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Timer, 0)
	for _, timer := range mem.Timers {
		if timer.ProcessInstanceKey != processInstanceKey {
			continue
		}
		if timer.State != state {
			continue
		}
		res = append(res, timer)
	}
	return res, nil
}

func (mem *Storage) SaveTimer(ctx context.Context, timer runtime.Timer) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.Timers[timer.Key] = timer
	return nil
}

func (mem *Storage) FindProcessInstanceComments(ctx context.Context, processInstanceKey int64) ([]runtime.Comment, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Comment, 0)
	for _, comment := range mem.Comments {
		if comment.ProcessInstanceKey != processInstanceKey {
			continue
		}
		res = append(res, comment)
	}
	slices.SortFunc(res, func(a, b runtime.Comment) int {
		return int(a.Key - b.Key)
	})
	return res, nil
}

func (mem *Storage) SaveComment(ctx context.Context, comment runtime.Comment) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.Comments[comment.Key] = comment
	return nil
}

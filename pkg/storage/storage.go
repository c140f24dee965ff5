// Package storage defines the persistence boundary of the BPMN engine.
// Implementations must keep writes for one process instance ordered the way
// the engine issues them; the engine serializes execution per instance, so
// no additional locking per entity is required.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
)

// ErrNotFound is returned by finders when no entity matches.
var ErrNotFound = errors.New("entity not found")

type ProcessDefinitionStorageReader interface {
	// FindLatestProcessDefinitionById returns the definition with the
	// highest version for the given BPMN process id.
	FindLatestProcessDefinitionById(ctx context.Context, processDefinitionId string) (runtime.ProcessDefinition, error)

	FindProcessDefinitionByKey(ctx context.Context, processDefinitionKey int64) (runtime.ProcessDefinition, error)

	// FindProcessDefinitionsById returns all versions for the given process
	// id ordered by version, smallest first.
	FindProcessDefinitionsById(ctx context.Context, processId string) ([]runtime.ProcessDefinition, error)
}

type ProcessDefinitionStorageWriter interface {
	SaveProcessDefinition(ctx context.Context, definition runtime.ProcessDefinition) error
}

type ProcessInstanceStorageReader interface {
	FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error)
}

type ProcessInstanceStorageWriter interface {
	SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error
}

type TokenStorageReader interface {
	GetTokensForProcessInstance(ctx context.Context, processInstanceKey int64) ([]runtime.Token, error)
	GetRunningTokens(ctx context.Context) ([]runtime.Token, error)
}

type TokenStorageWriter interface {
	SaveToken(ctx context.Context, token runtime.Token) error
}

type JobStorageReader interface {
	FindJobByKey(ctx context.Context, jobKey int64) (runtime.Job, error)
	FindActiveJobsByType(ctx context.Context, jobType string) ([]runtime.Job, error)
	FindPendingProcessInstanceJobs(ctx context.Context, processInstanceKey int64) ([]runtime.Job, error)
}

type JobStorageWriter interface {
	SaveJob(ctx context.Context, job runtime.Job) error
}

type MessageStorageReader interface {
	FindProcessInstanceMessageSubscriptions(ctx context.Context, processInstanceKey int64, state runtime.SubscriptionState) ([]runtime.MessageSubscription, error)
}

type MessageStorageWriter interface {
	SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error
}

type TimerStorageReader interface {
	FindTimersTo(ctx context.Context, end time.Time) ([]runtime.Timer, error)
	FindProcessInstanceTimers(ctx context.Context, processInstanceKey int64, state runtime.TimerState) ([]runtime.Timer, error)
}

type TimerStorageWriter interface {
	SaveTimer(ctx context.Context, timer runtime.Timer) error
}

type CommentStorageReader interface {
	FindProcessInstanceComments(ctx context.Context, processInstanceKey int64) ([]runtime.Comment, error)
}

type CommentStorageWriter interface {
	SaveComment(ctx context.Context, comment runtime.Comment) error
}

// Batch collects writes of one engine transition and applies them on Flush.
type Batch interface {
	ProcessDefinitionStorageWriter
	ProcessInstanceStorageWriter
	TokenStorageWriter
	JobStorageWriter
	MessageStorageWriter
	TimerStorageWriter
	CommentStorageWriter

	Flush(ctx context.Context) error
}

// Storage is the full persistence surface consumed by the engine.
type Storage interface {
	ProcessDefinitionStorageReader
	ProcessDefinitionStorageWriter
	ProcessInstanceStorageReader
	ProcessInstanceStorageWriter
	TokenStorageReader
	TokenStorageWriter
	JobStorageReader
	JobStorageWriter
	MessageStorageReader
	MessageStorageWriter
	TimerStorageReader
	TimerStorageWriter
	CommentStorageReader
	CommentStorageWriter

	NewBatch() Batch
}

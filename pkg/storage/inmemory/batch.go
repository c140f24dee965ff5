package inmemory

import (
	"context"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// Batch queues writes and applies them in order on Flush.
type Batch struct {
	db        *Storage
	stmtToRun []func() error
}

var _ storage.Batch = &Batch{}

func (b *Batch) SaveProcessDefinition(ctx context.Context, definition runtime.ProcessDefinition) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveProcessDefinition(ctx, definition)
	})
	return nil
}

func (b *Batch) SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveProcessInstance(ctx, processInstance)
	})
	return nil
}

func (b *Batch) SaveToken(ctx context.Context, token runtime.Token) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveToken(ctx, token)
	})
	return nil
}

func (b *Batch) SaveJob(ctx context.Context, job runtime.Job) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveJob(ctx, job)
	})
	return nil
}

func (b *Batch) SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveMessageSubscription(ctx, subscription)
	})
	return nil
}

func (b *Batch) SaveTimer(ctx context.Context, timer runtime.Timer) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveTimer(ctx, timer)
	})
	return nil
}

func (b *Batch) SaveComment(ctx context.Context, comment runtime.Comment) error {
	b.stmtToRun = append(b.stmtToRun, func() error {
		return b.db.SaveComment(ctx, comment)
	})
	return nil
}

func (b *Batch) Flush(ctx context.Context) error {
	for _, stmt := range b.stmtToRun {
		if err := stmt(); err != nil {
			return err
		}
	}
	b.stmtToRun = b.stmtToRun[:0]
	return nil
}

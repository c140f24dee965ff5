package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// CommentRecorder annotates process instances with catch-event arrivals and
// errors. It is a side-effect subscriber: the engine never depends on the
// comments it writes.
type CommentRecorder struct {
	writer      storage.CommentStorageWriter
	generateKey func() int64
	logger      hclog.Logger
}

var _ Notifier = &CommentRecorder{}

func NewCommentRecorder(writer storage.CommentStorageWriter, generateKey func() int64) *CommentRecorder {
	return &CommentRecorder{
		writer:      writer,
		generateKey: generateKey,
		logger:      hclog.Default().Named("comment-recorder"),
	}
}

func (r *CommentRecorder) record(processInstanceKey int64, elementId string, kind runtime.CommentKind, body string) {
	comment := runtime.Comment{
		Key:                r.generateKey(),
		ProcessInstanceKey: processInstanceKey,
		ElementId:          elementId,
		Kind:               kind,
		Body:               body,
		CreatedAt:          time.Now(),
	}
	if err := r.writer.SaveComment(context.Background(), comment); err != nil {
		r.logger.Error("failed to save comment", "processInstanceKey", processInstanceKey, "err", err)
	}
}

func (r *CommentRecorder) ProcessInstanceCreated(event ProcessInstanceCreatedEvent) {}

func (r *CommentRecorder) ProcessInstanceCompleted(event ProcessInstanceCompletedEvent) {}

func (r *CommentRecorder) ProcessInstanceFailed(event ProcessInstanceFailedEvent) {
	if event.NonPersistent {
		return
	}
	r.record(event.ProcessInstanceKey, event.ElementId, runtime.CommentKindError,
		fmt.Sprintf("process failed at element %s: %s", event.ElementId, event.Reason))
}

func (r *CommentRecorder) ActivityActivated(event ActivityEvent) {}

func (r *CommentRecorder) ActivityCompleted(event ActivityEvent) {}

func (r *CommentRecorder) ActivityClosed(event ActivityEvent) {}

func (r *CommentRecorder) IntermediateCatchEventArrived(event CatchEventArrivedEvent) {
	if event.NonPersistent {
		return
	}
	r.record(event.ProcessInstanceKey, event.ElementId, runtime.CommentKindEventArrived,
		fmt.Sprintf("event %q arrived at %s", event.EventName, event.ElementId))
}

func (r *CommentRecorder) ConditionedTransitionApplied(event ConditionedTransitionEvent) {}

func (r *CommentRecorder) ExpressionFailed(event ExpressionFailedEvent) {
	if event.NonPersistent {
		return
	}
	r.record(event.ProcessInstanceKey, event.ElementId, runtime.CommentKindError,
		fmt.Sprintf("expression %q failed: %s", event.Expression, event.Reason))
}

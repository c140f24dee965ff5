package bpmn

import "fmt"

// EngineError is the generic engine failure type.
type EngineError struct {
	Msg string
}

func (e *EngineError) Error() string {
	return e.Msg
}

// newEngineErrorf uses fmt.Sprintf(format, a...) to format the message
func newEngineErrorf(format string, a ...any) error {
	return &EngineError{
		Msg: fmt.Sprintf(format, a...),
	}
}

// DefinitionError is fatal to loading a BPMN document: malformed XML or an
// unresolvable node reference inside the flow graph.
type DefinitionError struct {
	Msg string
	Err error
}

func (e *DefinitionError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// ExpressionEvaluationError reports a recoverable per-transition failure:
// the expression is logged against the instance and the transition proceeds
// without its data update.
type ExpressionEvaluationError struct {
	Msg string
	Err error
}

func (e *ExpressionEvaluationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExpressionEvaluationError) Unwrap() error {
	return e.Err
}

// InvalidStateError reports an operation on a terminal instance or token.
// Always fatal to the call, never silently ignored.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string {
	return e.Msg
}

func newInvalidStateErrorf(format string, a ...any) error {
	return &InvalidStateError{
		Msg: fmt.Sprintf(format, a...),
	}
}

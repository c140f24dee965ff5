// Package script is the boundary between the engine and externally defined
// task code. Runners are registered per language identifier; the engine
// treats them as opaque and asynchronous-capable.
package script

import (
	"context"
	"fmt"
	"time"
)

// UserRef identifies the user a script runs on behalf of.
type UserRef struct {
	Id    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// Request carries everything a runner needs for one execution.
type Request struct {
	Code    string
	Data    map[string]any
	Config  map[string]string
	Timeout time.Duration
	User    UserRef
}

// Result is the structured outcome of a successful run. Output is merged
// into the instance data store by the caller.
type Result struct {
	Output map[string]any
	Stderr string
}

// Runner executes code of one language against process data.
type Runner interface {
	Language() string
	Run(ctx context.Context, req Request) (Result, error)
}

// LanguageNotSupportedError is returned when no runner is registered for
// the requested language. No execution takes place.
type LanguageNotSupportedError struct {
	Language string
}

func (e *LanguageNotSupportedError) Error() string {
	return fmt.Sprintf("no script runner registered for language %q", e.Language)
}

// TimeoutError is returned when a run exceeds its timeout budget.
type TimeoutError struct {
	Language string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s script interrupted after %s", e.Language, e.Timeout)
}

// RuntimeError wraps an exception thrown by the executed code.
type RuntimeError struct {
	Language string
	Stderr   string
	Err      error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s script failed: %s", e.Language, e.Err.Error())
	}
	return fmt.Sprintf("%s script failed: %s", e.Language, e.Stderr)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

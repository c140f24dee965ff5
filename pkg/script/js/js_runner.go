// Package js runs JavaScript script tasks on goja. The process data store
// is exposed to the script as `data`, the node configuration as `config`
// and the executing user as `user`; the script's completion value becomes
// the structured task output.
package js

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"

	"github.com/aTiKhan/processmaker-1/pkg/script"
)

const Language = "javascript"

const defaultTimeout = 30 * time.Second

type vmFactory struct{}

func (vmFactory) NewVM() script.VM {
	return newJsVM()
}

type Runtime struct {
	pool *script.VMPool
}

var _ script.Runner = &Runtime{}

func NewRuntime(ctx context.Context, maxPoolSize int, minPoolSize int) *Runtime {
	return &Runtime{
		pool: script.NewVMPool(ctx, vmFactory{}, maxPoolSize, minPoolSize),
	}
}

func (r *Runtime) Language() string {
	return Language
}

func (r *Runtime) Run(ctx context.Context, req script.Request) (script.Result, error) {
	vm := r.pool.Get().(*jsVM)
	defer r.pool.Put(vm)

	return vm.run(req)
}

type jsVM struct {
	vm *goja.Runtime
}

func (v *jsVM) VM() {}

func newJsVM() *jsVM {
	return &jsVM{vm: goja.New()}
}

func (v *jsVM) run(req script.Request) (script.Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if err := v.vm.Set("data", req.Data); err != nil {
		return script.Result{}, &script.RuntimeError{Language: Language, Err: err}
	}
	if err := v.vm.Set("config", req.Config); err != nil {
		return script.Result{}, &script.RuntimeError{Language: Language, Err: err}
	}
	if err := v.vm.Set("user", map[string]any{"id": req.User.Id, "email": req.User.Email}); err != nil {
		return script.Result{}, &script.RuntimeError{Language: Language, Err: err}
	}

	interrupt := time.AfterFunc(timeout, func() {
		v.vm.Interrupt("timeout")
	})
	defer interrupt.Stop()
	defer v.vm.ClearInterrupt()

	value, err := v.vm.RunString(req.Code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return script.Result{}, &script.TimeoutError{Language: Language, Timeout: timeout}
		}
		var exception *goja.Exception
		if errors.As(err, &exception) {
			return script.Result{Stderr: exception.String()}, &script.RuntimeError{
				Language: Language,
				Stderr:   exception.String(),
				Err:      err,
			}
		}
		return script.Result{}, &script.RuntimeError{Language: Language, Err: err}
	}

	return script.Result{Output: exportOutput(value)}, nil
}

// exportOutput converts the script completion value into a structured
// output map. Non-object values are wrapped under "result".
func exportOutput(value goja.Value) map[string]any {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	exported := value.Export()
	if m, ok := exported.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": exported}
}

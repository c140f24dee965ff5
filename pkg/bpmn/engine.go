// Package bpmn implements a token based BPMN process execution engine.
// Execution is serialized per process instance: one run loop drains a
// command queue to quiescence, collects all writes in a storage batch and
// flushes once. Side effects (scripts, timers) are started after the flush.
package bpmn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/notifier"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/script"
	"github.com/aTiKhan/processmaker-1/pkg/script/js"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
	"github.com/aTiKhan/processmaker-1/pkg/storage/inmemory"
)

const (
	defaultDefinitionCacheSize = 128
	defaultScriptWorkers       = 4
	defaultScriptTimeout       = 30 * time.Second
	defaultTimerPollInterval   = time.Second
)

type Engine struct {
	name          string
	logger        hclog.Logger
	snowflake     *snowflake.Node
	persistence   storage.Storage
	notifier      notifier.Notifier
	scripts       *script.Registry
	timers        *timerManager
	definitions   *lru.Cache[int64, *runtime.ProcessDefinition]
	scriptTimeout time.Duration
	inlineScripts bool
	scriptWorkers int

	// instanceLocks serializes all execution per process instance key.
	instanceLocks sync.Map
	// ephemeral holds the scratch stores of non-persistent (dry run)
	// instances, keyed by instance key. Dropped once the instance ends.
	ephemeral sync.Map

	dispatchQueue chan scriptDispatch
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// scriptDispatch names one script job to execute outside the run loop.
type scriptDispatch struct {
	jobKey             int64
	processInstanceKey int64
}

// sideEffects collects work that must only start after the batch flushed.
type sideEffects struct {
	dispatch []scriptDispatch
	timers   []runtime.Timer
}

func (fx *sideEffects) append(other sideEffects) {
	fx.dispatch = append(fx.dispatch, other.dispatch...)
	fx.timers = append(fx.timers, other.timers...)
}

type EngineOption = func(*Engine)

// WithStorage sets the persistence backend. Defaults to in-memory storage.
func WithStorage(persistence storage.Storage) EngineOption {
	return func(engine *Engine) { engine.persistence = persistence }
}

// WithNotifier sets the lifecycle notifier. Defaults to a log notifier.
func WithNotifier(n notifier.Notifier) EngineOption {
	return func(engine *Engine) { engine.notifier = n }
}

// WithScriptRegistry sets the script runner registry. Defaults to a
// registry with the JavaScript runtime registered.
func WithScriptRegistry(registry *script.Registry) EngineOption {
	return func(engine *Engine) { engine.scripts = registry }
}

func WithLogger(logger hclog.Logger) EngineOption {
	return func(engine *Engine) { engine.logger = logger }
}

func WithName(name string) EngineOption {
	return func(engine *Engine) { engine.name = name }
}

// WithInlineScripts executes script jobs synchronously inside the calling
// goroutine instead of handing them to the worker pool. Non-persistent
// instances always run scripts inline regardless of this option.
func WithInlineScripts() EngineOption {
	return func(engine *Engine) { engine.inlineScripts = true }
}

func WithScriptWorkers(n int) EngineOption {
	return func(engine *Engine) { engine.scriptWorkers = n }
}

func WithScriptTimeout(timeout time.Duration) EngineOption {
	return func(engine *Engine) { engine.scriptTimeout = timeout }
}

// NewEngine creates and starts a new engine: the timer manager and the
// script worker pool run until Stop is called.
func NewEngine(options ...EngineOption) (*Engine, error) {
	node, err := newSnowflakeIdGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key generator: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		name:          fmt.Sprintf("bpmn-engine-%d", node.Generate().Int64()),
		snowflake:     node,
		scriptTimeout: defaultScriptTimeout,
		scriptWorkers: defaultScriptWorkers,
		dispatchQueue: make(chan scriptDispatch, 256),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, option := range options {
		option(engine)
	}
	if engine.logger == nil {
		engine.logger = hclog.Default().Named("bpmn")
	}
	if engine.persistence == nil {
		engine.persistence = inmemory.NewStorage()
	}
	if engine.notifier == nil {
		engine.notifier = notifier.NewLogNotifier(engine.logger)
	}
	if engine.scripts == nil {
		engine.scripts = script.NewRegistry(js.NewRuntime(ctx, 10, 2))
	}
	engine.definitions, err = lru.New[int64, *runtime.ProcessDefinition](defaultDefinitionCacheSize)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize definition cache: %w", err)
	}
	engine.timers = newTimerManager(engine, defaultTimerPollInterval)
	engine.wg.Add(1)
	go func() {
		defer engine.wg.Done()
		engine.timers.run(ctx)
	}()
	if !engine.inlineScripts {
		for i := 0; i < engine.scriptWorkers; i++ {
			engine.wg.Add(1)
			go func() {
				defer engine.wg.Done()
				engine.scriptWorker(ctx)
			}()
		}
	}
	return engine, nil
}

// Name returns the name of the engine, only useful when you control
// multiple ones.
func (e *Engine) Name() string {
	return e.name
}

// Stop shuts the timer manager and script workers down and waits for
// in-flight work, including firing timer callbacks, to finish. Script
// jobs not yet picked up stay pending; RunOrContinueInstance re-dispatches
// them on the next start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
	})
}

// lockInstance serializes execution for one process instance. The returned
// function releases the lock.
func (e *Engine) lockInstance(processInstanceKey int64) func() {
	value, _ := e.instanceLocks.LoadOrStore(processInstanceKey, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// storeFor returns the store holding an instance's state: the scratch store
// for a non-persistent instance, the configured backend otherwise.
func (e *Engine) storeFor(processInstanceKey int64) storage.Storage {
	if value, ok := e.ephemeral.Load(processInstanceKey); ok {
		return value.(storage.Storage)
	}
	return e.persistence
}

// InstanceOption customizes instance creation.
type InstanceOption = func(*runtime.ProcessInstance)

// WithNonPersistent marks the instance as a dry run: no storage writes, no
// notifications, no comments. State lives in a throwaway store.
func WithNonPersistent() InstanceOption {
	return func(instance *runtime.ProcessInstance) { instance.NonPersistent = true }
}

// WithPublicId overrides the generated public instance identifier.
func WithPublicId(publicId string) InstanceOption {
	return func(instance *runtime.ProcessInstance) { instance.PublicId = publicId }
}

// CreateInstanceById creates a new instance for the latest version of the
// process with the given BPMN process id.
func (e *Engine) CreateInstanceById(ctx context.Context, processId string, variables map[string]any, options ...InstanceOption) (*runtime.ProcessInstance, error) {
	definition, err := e.persistence.FindLatestProcessDefinitionById(ctx, processId)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("no process with id=%s was found", processId), err)
	}
	return e.CreateInstance(ctx, &definition, variables, options...)
}

// CreateInstance creates a new instance for a given process definition.
// The instance starts in ACTIVE state but no token is executed until one of
// the run methods is called.
func (e *Engine) CreateInstance(ctx context.Context, definition *runtime.ProcessDefinition, variables map[string]any, options ...InstanceOption) (*runtime.ProcessInstance, error) {
	instance := runtime.ProcessInstance{
		Definition:    definition,
		Key:           e.generateKey(),
		PublicId:      uuid.NewString(),
		DefinitionKey: definition.Key,
		State:         runtime.InstanceStateActive,
		DataStore:     runtime.NewDataStore(nil, variables),
		CreatedAt:     time.Now(),
	}
	for _, option := range options {
		option(&instance)
	}
	store := e.persistence
	if instance.NonPersistent {
		store = inmemory.NewStorage()
		e.ephemeral.Store(instance.Key, store)
	}
	if err := store.SaveProcessInstance(ctx, instance); err != nil {
		return nil, errors.Join(newEngineErrorf("failed to save process instance %d", instance.Key), err)
	}
	e.notifier.ProcessInstanceCreated(notifier.ProcessInstanceCreatedEvent{
		Event:     e.instanceEvent(&instance),
		CreatedAt: instance.CreatedAt,
	})
	return &instance, nil
}

// CreateAndRunInstanceById creates an instance for the latest version of
// the process id and executes it until it completes or parks on external
// input.
func (e *Engine) CreateAndRunInstanceById(ctx context.Context, processId string, variables map[string]any, options ...InstanceOption) (*runtime.ProcessInstance, error) {
	instance, err := e.CreateInstanceById(ctx, processId, variables, options...)
	if err != nil {
		return nil, err
	}
	return instance, e.runFromStart(ctx, instance)
}

// CreateAndRunInstance is CreateAndRunInstanceById addressed by definition
// key instead of process id.
func (e *Engine) CreateAndRunInstance(ctx context.Context, processDefinitionKey int64, variables map[string]any, options ...InstanceOption) (*runtime.ProcessInstance, error) {
	definition, err := e.loadDefinition(ctx, processDefinitionKey)
	if err != nil {
		return nil, err
	}
	instance, err := e.CreateInstance(ctx, definition, variables, options...)
	if err != nil {
		return nil, err
	}
	return instance, e.runFromStart(ctx, instance)
}

func (e *Engine) runFromStart(ctx context.Context, instance *runtime.ProcessInstance) error {
	store := e.storeFor(instance.Key)
	var queue []command
	process := &instance.Definition.Definitions.Process
	unlock := e.lockInstance(instance.Key)
	for i := range process.StartEvents {
		startEvent := &process.StartEvents[i]
		token := e.newToken(instance, startEvent.Id, startEvent.GetType())
		queue = append(queue, arrivalCommand{token: token, element: startEvent})
	}
	fx, err := e.run(ctx, store, instance, queue)
	unlock()
	if err != nil {
		return errors.Join(newEngineErrorf("failed to run process instance %d", instance.Key), err)
	}
	e.afterRun(ctx, instance, fx)
	return nil
}

// RunOrContinueInstance resumes a process instance: parked script jobs are
// re-dispatched, buffered messages are correlated against open
// subscriptions and overdue timers fire. Continuing a COMPLETED or ERROR
// instance fails with InvalidStateError.
func (e *Engine) RunOrContinueInstance(ctx context.Context, processInstanceKey int64) (*runtime.ProcessInstance, error) {
	store := e.storeFor(processInstanceKey)
	unlock := e.lockInstance(processInstanceKey)
	instance, err := e.findInstance(ctx, store, processInstanceKey)
	if err != nil {
		unlock()
		return nil, err
	}
	if instance.State != runtime.InstanceStateActive {
		unlock()
		return nil, newInvalidStateErrorf("process instance %d is %s, cannot be continued", processInstanceKey, instance.State)
	}
	queue, fx, err := e.continuationCommands(ctx, store, instance)
	if err != nil {
		unlock()
		return nil, err
	}
	runFx, err := e.run(ctx, store, instance, queue)
	unlock()
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to continue process instance %d", processInstanceKey), err)
	}
	fx.append(runFx)
	e.afterRun(ctx, instance, fx)
	return instance, nil
}

// continuationCommands inspects parked state and produces the commands and
// side effects needed to pick the instance back up.
func (e *Engine) continuationCommands(ctx context.Context, store storage.Storage, instance *runtime.ProcessInstance) ([]command, sideEffects, error) {
	var queue []command
	var fx sideEffects

	jobs, err := store.FindPendingProcessInstanceJobs(ctx, instance.Key)
	if err != nil {
		return nil, fx, errors.Join(newEngineErrorf("failed to find pending jobs for instance %d", instance.Key), err)
	}
	for _, job := range jobs {
		if job.Token.ElementType == bpmn20.ElementTypeScriptTask {
			fx.dispatch = append(fx.dispatch, scriptDispatch{jobKey: job.Key, processInstanceKey: instance.Key})
		}
	}

	subscriptions, err := store.FindProcessInstanceMessageSubscriptions(ctx, instance.Key, runtime.SubscriptionStateActive)
	if err != nil {
		return nil, fx, errors.Join(newEngineErrorf("failed to find subscriptions for instance %d", instance.Key), err)
	}
	for i := range subscriptions {
		if cmd, ok := e.correlateSubscription(ctx, store, instance, &subscriptions[i]); ok {
			queue = append(queue, cmd)
		}
	}

	timers, err := store.FindProcessInstanceTimers(ctx, instance.Key, runtime.TimerStateCreated)
	if err != nil {
		return nil, fx, errors.Join(newEngineErrorf("failed to find timers for instance %d", instance.Key), err)
	}
	now := time.Now()
	for i := range timers {
		timer := timers[i]
		if timer.DueAt.After(now) {
			fx.timers = append(fx.timers, timer)
			continue
		}
		if cmd, ok := e.fireTimer(ctx, store, instance, &timer); ok {
			queue = append(queue, cmd)
		}
	}
	return queue, fx, nil
}

// run drains the command queue to quiescence while collecting all writes in
// one batch. Callers must hold the instance lock. The returned side effects
// must be handed to afterRun once the lock is released.
func (e *Engine) run(ctx context.Context, store storage.Storage, instance *runtime.ProcessInstance, queue []command) (sideEffects, error) {
	var fx sideEffects
	batch := store.NewBatch()

	tokens, err := e.loadTokens(ctx, store, instance.Key)
	if err != nil {
		return fx, err
	}

	for len(queue) > 0 {
		cmd := queue[0]
		queue = queue[1:]

		switch c := cmd.(type) {
		case arrivalCommand:
			next, arrivalFx, err := e.handleArrival(ctx, batch, instance, tokens, c)
			if err != nil {
				return fx, errors.Join(newEngineErrorf("failed to handle element %s", c.element.GetId()), err)
			}
			fx.append(arrivalFx)
			queue = append(queue, next...)
		case leaveCommand:
			next, err := e.handleLeave(ctx, batch, instance, tokens, c)
			if err != nil {
				return fx, errors.Join(newEngineErrorf("failed to leave element %s", c.element.GetId()), err)
			}
			queue = append(queue, next...)
		case flowCommand:
			next, err := e.handleFlow(ctx, batch, instance, tokens, c)
			if err != nil {
				return fx, errors.Join(newEngineErrorf("failed to take sequence flow %s", c.flow.Id), err)
			}
			queue = append(queue, next...)
		case errorCommand:
			e.failInstance(ctx, batch, store, instance, tokens, c.elementId, c.err)
			queue = queue[:0]
		default:
			return fx, newEngineErrorf("unhandled command type %s", cmd.Type())
		}
	}

	if instance.State == runtime.InstanceStateActive && !hasLiveTokens(tokens) {
		now := time.Now()
		instance.State = runtime.InstanceStateCompleted
		instance.CompletedAt = &now
		e.notifier.ProcessInstanceCompleted(notifier.ProcessInstanceCompletedEvent{
			Event:       e.instanceEvent(instance),
			CompletedAt: now,
		})
	}

	if err := batch.SaveProcessInstance(ctx, *instance); err != nil {
		return fx, errors.Join(newEngineErrorf("failed to save process instance %d", instance.Key), err)
	}
	if err := batch.Flush(ctx); err != nil {
		return fx, errors.Join(newEngineErrorf("failed to flush batch for instance %d", instance.Key), err)
	}
	return fx, nil
}

// afterRun starts side effects once the batch flushed and the lock is
// released: timers are armed and script jobs dispatched. Non-persistent
// instances always execute scripts inline so the dry run finishes within
// the calling goroutine.
func (e *Engine) afterRun(ctx context.Context, instance *runtime.ProcessInstance, fx sideEffects) {
	for _, timer := range fx.timers {
		e.timers.arm(timer)
	}
	if e.inlineScripts || instance.NonPersistent {
		for _, dispatch := range fx.dispatch {
			e.executeScriptJob(ctx, dispatch)
		}
	} else {
		for _, dispatch := range fx.dispatch {
			select {
			case e.dispatchQueue <- dispatch:
			case <-e.ctx.Done():
				// engine is stopping; the job stays pending until the
				// instance is continued
				e.logger.Debug("engine stopped, script job stays pending", "jobKey", dispatch.jobKey)
			}
		}
	}
	if instance.NonPersistent {
		store := e.storeFor(instance.Key)
		if current, err := store.FindProcessInstanceByKey(ctx, instance.Key); err == nil {
			*instance = current
			instance.Definition, _ = e.loadDefinition(ctx, current.DefinitionKey)
			if instance.State != runtime.InstanceStateActive {
				e.ephemeral.Delete(instance.Key)
			}
		}
	}
}

// failInstance moves the instance to ERROR: remaining live tokens are
// closed, open subscriptions withdrawn and pending timers cancelled.
func (e *Engine) failInstance(ctx context.Context, batch storage.Batch, store storage.Storage, instance *runtime.ProcessInstance, tokens map[int64]*runtime.Token, elementId string, cause error) {
	e.logger.Error("process instance failed", "instanceKey", instance.Key, "elementId", elementId, "err", cause)
	instance.State = runtime.InstanceStateError
	e.notifier.ProcessInstanceFailed(notifier.ProcessInstanceFailedEvent{
		Event:     e.instanceEvent(instance),
		ElementId: elementId,
		Reason:    cause.Error(),
	})
	for _, token := range tokens {
		if token.State.IsTerminal() {
			continue
		}
		token.State = runtime.TokenStateClosed
		if err := batch.SaveToken(ctx, *token); err != nil {
			e.logger.Error("failed to close token", "tokenKey", token.Key, "err", err)
			continue
		}
		e.notifier.ActivityClosed(e.activityEvent(instance, token))
	}
	subscriptions, err := store.FindProcessInstanceMessageSubscriptions(ctx, instance.Key, runtime.SubscriptionStateActive)
	if err == nil {
		for _, subscription := range subscriptions {
			subscription.State = runtime.SubscriptionStateWithdrawn
			if err := batch.SaveMessageSubscription(ctx, subscription); err != nil {
				e.logger.Error("failed to withdraw subscription", "subscriptionKey", subscription.Key, "err", err)
			}
		}
	}
	timers, err := store.FindProcessInstanceTimers(ctx, instance.Key, runtime.TimerStateCreated)
	if err == nil {
		for _, timer := range timers {
			timer.State = runtime.TimerStateCancelled
			if err := batch.SaveTimer(ctx, timer); err != nil {
				e.logger.Error("failed to cancel timer", "timerKey", timer.Key, "err", err)
			}
		}
	}
}

func (e *Engine) loadTokens(ctx context.Context, store storage.Storage, processInstanceKey int64) (map[int64]*runtime.Token, error) {
	existing, err := store.GetTokensForProcessInstance(ctx, processInstanceKey)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to load tokens for instance %d", processInstanceKey), err)
	}
	tokens := make(map[int64]*runtime.Token, len(existing))
	for i := range existing {
		token := existing[i]
		tokens[token.Key] = &token
	}
	return tokens, nil
}

func hasLiveTokens(tokens map[int64]*runtime.Token) bool {
	for _, token := range tokens {
		if !token.State.IsTerminal() {
			return true
		}
	}
	return false
}

func (e *Engine) newToken(instance *runtime.ProcessInstance, elementId string, elementType bpmn20.ElementType) runtime.Token {
	return runtime.Token{
		Key:                e.generateKey(),
		ProcessInstanceKey: instance.Key,
		ElementId:          elementId,
		ElementInstanceKey: e.generateKey(),
		ElementType:        elementType,
		State:              runtime.TokenStateActive,
		CreatedAt:          time.Now(),
	}
}

func saveToken(ctx context.Context, batch storage.Batch, tokens map[int64]*runtime.Token, token runtime.Token) error {
	if err := batch.SaveToken(ctx, token); err != nil {
		return err
	}
	copied := token
	tokens[token.Key] = &copied
	return nil
}

// findInstance loads an instance and reattaches its definition.
func (e *Engine) findInstance(ctx context.Context, store storage.Storage, processInstanceKey int64) (*runtime.ProcessInstance, error) {
	instance, err := store.FindProcessInstanceByKey(ctx, processInstanceKey)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to find process instance %d", processInstanceKey), err)
	}
	definition, err := e.loadDefinition(ctx, instance.DefinitionKey)
	if err != nil {
		return nil, err
	}
	instance.Definition = definition
	return &instance, nil
}

// FindProcessInstance returns the instance for the given key.
func (e *Engine) FindProcessInstance(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	instance, err := e.findInstance(ctx, e.storeFor(processInstanceKey), processInstanceKey)
	if err != nil {
		return runtime.ProcessInstance{}, err
	}
	return *instance, nil
}

// FindProcessesById returns all deployed versions of a process, ordered by
// version, smallest first.
func (e *Engine) FindProcessesById(ctx context.Context, processId string) ([]runtime.ProcessDefinition, error) {
	return e.persistence.FindProcessDefinitionsById(ctx, processId)
}

func (e *Engine) instanceEvent(instance *runtime.ProcessInstance) notifier.Event {
	event := notifier.Event{
		ProcessInstanceKey: instance.Key,
		NonPersistent:      instance.NonPersistent,
	}
	if instance.Definition != nil {
		event.ProcessId = instance.Definition.BpmnProcessId
		event.ProcessDefinitionKey = instance.Definition.Key
	} else {
		event.ProcessDefinitionKey = instance.DefinitionKey
	}
	return event
}

func (e *Engine) activityEvent(instance *runtime.ProcessInstance, token *runtime.Token) notifier.ActivityEvent {
	return notifier.ActivityEvent{
		Event:       e.instanceEvent(instance),
		ElementId:   token.ElementId,
		ElementType: string(token.ElementType),
		TokenKey:    token.Key,
		Assignee:    token.Assignee,
	}
}

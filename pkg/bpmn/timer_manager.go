package bpmn

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
)

// timerManager arms due timers. Timers created in the current engine are
// armed directly after the batch flush; timers surviving a restart are
// picked up by the storage poll. Firing is idempotent: triggerTimer
// re-checks timer state under the instance lock, so a poll and a direct
// arm racing on the same timer fire it once.
type timerManager struct {
	engine       *Engine
	pollInterval time.Duration
	logger       hclog.Logger

	mu      sync.Mutex
	armed   map[int64]*time.Timer
	stopped bool
	firing  sync.WaitGroup
}

func newTimerManager(engine *Engine, pollInterval time.Duration) *timerManager {
	return &timerManager{
		engine:       engine,
		pollInterval: pollInterval,
		logger:       engine.logger.Named("timer-manager"),
		armed:        make(map[int64]*time.Timer),
	}
}

func (tm *timerManager) run(ctx context.Context) {
	ticker := time.NewTicker(tm.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			tm.disarmAll()
			return
		case now := <-ticker.C:
			timers, err := tm.engine.persistence.FindTimersTo(ctx, now.Add(tm.pollInterval))
			if err != nil {
				tm.logger.Error("failed to poll timers", "err", err)
				continue
			}
			for _, timer := range timers {
				if timer.State == runtime.TimerStateCreated {
					tm.arm(timer)
				}
			}
		}
	}
}

// arm schedules one timer to fire at its due time. Arming the same timer
// key twice, or arming after shutdown, is a no-op.
func (tm *timerManager) arm(timer runtime.Timer) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.stopped {
		return
	}
	if _, ok := tm.armed[timer.Key]; ok {
		return
	}
	delay := time.Until(timer.DueAt)
	if delay < 0 {
		delay = 0
	}
	tm.armed[timer.Key] = time.AfterFunc(delay, func() {
		tm.mu.Lock()
		delete(tm.armed, timer.Key)
		if tm.stopped {
			tm.mu.Unlock()
			return
		}
		tm.firing.Add(1)
		tm.mu.Unlock()
		defer tm.firing.Done()
		tm.engine.triggerTimer(context.Background(), timer)
	})
}

// disarmAll stops every scheduled timer and waits for callbacks that
// already started firing.
func (tm *timerManager) disarmAll() {
	tm.mu.Lock()
	tm.stopped = true
	for key, handle := range tm.armed {
		handle.Stop()
		delete(tm.armed, key)
	}
	tm.mu.Unlock()
	tm.firing.Wait()
}

package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunStatus is the coarse status of a run.
type RunStatus string

const (
	// RunRunning and RunPaused describe a live run.
	RunRunning RunStatus = "running"
	RunPaused  RunStatus = "paused"

	// Terminal statuses, in precedence order: a set cancellation switch
	// wins over a fired global timer, which wins over any failed task.
	RunCancelled RunStatus = "cancelled"
	RunTimeout   RunStatus = "timeout"
	RunFailed    RunStatus = "failed"
	RunCompleted RunStatus = "completed"
)

// ExecutionResult is the aggregate outcome of one run.
type ExecutionResult struct {
	ExecutionID string
	Status      RunStatus
	Results     map[string]TaskResult
	Duration    time.Duration
	StartedAt   time.Time
	CompletedAt time.Time
}

// cancelReason records why the run's cancellation switch was set. It is
// written once and never cleared.
type cancelReason uint32

const (
	reasonNone cancelReason = iota
	reasonUser
	reasonGlobalTimeout
	reasonRaceSettled
)

// ExecutionContext is the per-run container: run ID, plan reference,
// global store, the task-id → TaskResult map, the set-once cancellation
// switch, the pause gate, and a coarse status.
//
// It is exclusively owned by one run. The result map is mutated only by
// engine driver code; task bodies touch state only through their
// TaskContext accessors.
type ExecutionContext struct {
	ExecutionID string

	plan  *Plan
	store *Store

	ctx    context.Context
	cancel context.CancelFunc
	reason atomic.Uint32

	gate *pauseGate

	mu      sync.Mutex
	results map[string]TaskResult
	order   []string // task IDs in completion order
	status  RunStatus

	// cbMu serializes completion callbacks and stream sends so they fire
	// once per settled task, in completion order, across all strategies.
	cbMu sync.Mutex
}

func newExecutionContext(parent context.Context, plan *Plan) *ExecutionContext {
	ctx, cancel := context.WithCancel(parent)
	return &ExecutionContext{
		ExecutionID: uuid.NewString(),
		plan:        plan,
		store:       NewStore(),
		ctx:         ctx,
		cancel:      cancel,
		gate:        newPauseGate(),
		results:     make(map[string]TaskResult, len(plan.Tasks)),
		status:      RunRunning,
	}
}

// Plan returns the plan this run executes.
func (ec *ExecutionContext) Plan() *Plan { return ec.plan }

// Store returns the run's global key/value store.
func (ec *ExecutionContext) Store() *Store { return ec.store }

// Status returns the run's coarse status.
func (ec *ExecutionContext) Status() RunStatus {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.status
}

// Cancelled reports whether the run's cancellation signal is set, for any
// reason, including a cancelled parent context.
func (ec *ExecutionContext) Cancelled() bool {
	return ec.ctx.Err() != nil
}

// Result returns the recorded result for a task, if any.
func (ec *ExecutionContext) Result(taskID string) (TaskResult, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	r, ok := ec.results[taskID]
	return r, ok
}

// Results returns a copy of the task-id → TaskResult map.
func (ec *ExecutionContext) Results() map[string]TaskResult {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make(map[string]TaskResult, len(ec.results))
	for k, v := range ec.results {
		out[k] = v
	}
	return out
}

func (ec *ExecutionContext) setStatus(s RunStatus) {
	ec.mu.Lock()
	ec.status = s
	ec.mu.Unlock()
}

// setResult records a task's settled result. Results are overwritten per
// attempt, never appended; a task ID appears in the completion order once.
func (ec *ExecutionContext) setResult(r TaskResult) {
	ec.mu.Lock()
	if _, seen := ec.results[r.TaskID]; !seen {
		ec.order = append(ec.order, r.TaskID)
	}
	ec.results[r.TaskID] = r
	ec.mu.Unlock()
}

func (ec *ExecutionContext) anyTaskFailed() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, r := range ec.results {
		if r.Status.IsFailure() {
			return true
		}
	}
	return false
}

// trip sets the cancellation switch once and cancels the run context. The
// first caller's reason sticks; later calls only re-cancel the context.
func (ec *ExecutionContext) trip(why cancelReason) {
	ec.reason.CompareAndSwap(uint32(reasonNone), uint32(why))
	ec.cancel()
	ec.gate.release()
}

func (ec *ExecutionContext) cancelReason() cancelReason {
	r := cancelReason(ec.reason.Load())
	if r == reasonNone && ec.ctx.Err() != nil {
		// Parent context died underneath us; treat as a user cancel.
		return reasonUser
	}
	return r
}

// pauseGate suspends task dispatch without destroying run state. Every
// driver consults it immediately before dispatching a task; resuming (or
// cancelling the run) signals all waiters.
type pauseGate struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

func newPauseGate() *pauseGate {
	return &pauseGate{resumed: make(chan struct{})}
}

func (g *pauseGate) pause() {
	g.mu.Lock()
	if !g.paused {
		g.paused = true
		g.resumed = make(chan struct{})
	}
	g.mu.Unlock()
}

func (g *pauseGate) release() {
	g.mu.Lock()
	if g.paused {
		g.paused = false
		close(g.resumed)
	}
	g.mu.Unlock()
}

// wait blocks while the gate is paused. It returns the context error if
// the run is cancelled first.
func (g *pauseGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		ch := g.resumed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// TaskContext is the per-attempt handle a task body uses to read and write
// run-scoped state, emit logs and metrics, and observe its attempt number.
// Keys are namespaced per task; a body never sees another task's entries.
type TaskContext struct {
	TaskID      string
	ExecutionID string
	Attempt     int
	StartedAt   time.Time

	store  *Store
	logger zerolog.Logger
	metric func(name string, value float64)
}

func newTaskContext(ec *ExecutionContext, t *Task, attempt int, logger zerolog.Logger, metric func(string, float64)) *TaskContext {
	return &TaskContext{
		TaskID:      t.ID,
		ExecutionID: ec.ExecutionID,
		Attempt:     attempt,
		StartedAt:   time.Now(),
		store:       ec.store,
		logger: logger.With().
			Str("execution_id", ec.ExecutionID).
			Str("task_id", t.ID).
			Int("attempt", attempt).
			Logger(),
		metric: metric,
	}
}

// Set writes a value into the run store under this task's namespace.
func (tc *TaskContext) Set(key string, value any) {
	tc.store.Set(taskKey(tc.TaskID, key), value)
}

// Get reads a value from this task's namespace in the run store.
func (tc *TaskContext) Get(key string) (any, bool) {
	return tc.store.Get(taskKey(tc.TaskID, key))
}

// Log returns a zerolog logger bound to this attempt's run, task, and
// attempt fields for free-form leveled messages.
func (tc *TaskContext) Log() *zerolog.Logger {
	return &tc.logger
}

// Metric emits a named numeric measurement. No-op when the engine has no
// metric sink.
func (tc *TaskContext) Metric(name string, value float64) {
	if tc.metric != nil {
		tc.metric(name, value)
	}
}

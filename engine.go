package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine is the orchestrator: it dispatches a plan's tasks per the plan's
// strategy, applies retry/timeout/compensation per task, aggregates
// results, and exposes cooperative cancel/pause/resume by execution ID.
//
// An Engine is safe for concurrent use; each Execute call is an isolated
// run with its own ExecutionContext. The run registry is plain engine
// instance state; the engine's lifetime is owned by its creator.
type Engine struct {
	logger         zerolog.Logger
	maxWorkers     int
	defaultTimeout time.Duration
	observer       Observer
	metricSink     func(name string, value float64)

	mu   sync.Mutex
	runs map[string]*ExecutionContext
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:         zerolog.Nop(),
		maxWorkers:     defaultMaxWorkers(),
		defaultTimeout: DefaultTaskTimeout,
		runs:           make(map[string]*ExecutionContext),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxWorkers <= 0 {
		e.maxWorkers = defaultMaxWorkers()
	}
	return e
}

// Execute runs the plan to completion and returns the aggregate result.
//
// Per-task failures never surface as the returned error; inspect the
// result's Status and Results instead. The error return is reserved for
// structural plan errors discovered before any task executes.
func (e *Engine) Execute(ctx context.Context, plan *Plan, input any) (*ExecutionResult, error) {
	return e.run(ctx, plan, input, nil)
}

// ExecuteStream runs the plan and yields each settled TaskResult strictly
// in completion order. The channel is closed when the run settles.
//
// Only the sequential, parallel, and dag strategies support streaming;
// race and all return ErrStreamUnsupported. A fresh call is a fresh run;
// streams are not restartable.
func (e *Engine) ExecuteStream(ctx context.Context, plan *Plan, input any) (<-chan TaskResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	switch plan.Strategy {
	case StrategyRace, StrategyAll:
		return nil, fmt.Errorf("plan %q: strategy %q: %w", plan.ID, plan.Strategy, ErrStreamUnsupported)
	}

	// Buffered to the task count: drivers never block on a slow consumer.
	stream := make(chan TaskResult, len(plan.Tasks))
	go func() {
		defer close(stream)
		_, _ = e.run(ctx, plan, input, stream)
	}()
	return stream, nil
}

// Cancel sets the run's cancellation switch. Cancellation is cooperative:
// in-flight task bodies keep running until they observe the signal or
// their own timeout elapses; drivers stop dispatching new tasks.
func (e *Engine) Cancel(executionID string) error {
	ec, err := e.lookup(executionID)
	if err != nil {
		return err
	}
	ec.trip(reasonUser)
	e.logger.Info().Str("execution_id", executionID).Msg("execution cancelled")
	return nil
}

// Pause suspends task dispatch for the run. Tasks already in flight keep
// running; every driver blocks at its next dispatch point until Resume.
func (e *Engine) Pause(executionID string) error {
	ec, err := e.lookup(executionID)
	if err != nil {
		return err
	}
	ec.gate.pause()
	ec.setStatus(RunPaused)
	e.logger.Info().Str("execution_id", executionID).Msg("execution paused")
	return nil
}

// Resume releases a paused run's dispatch gate.
func (e *Engine) Resume(executionID string) error {
	ec, err := e.lookup(executionID)
	if err != nil {
		return err
	}
	ec.gate.release()
	ec.setStatus(RunRunning)
	e.logger.Info().Str("execution_id", executionID).Msg("execution resumed")
	return nil
}

// Context returns the live ExecutionContext for a registered run.
func (e *Engine) Context(executionID string) (*ExecutionContext, error) {
	return e.lookup(executionID)
}

func (e *Engine) lookup(executionID string) (*ExecutionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ec, ok := e.runs[executionID]
	if !ok {
		return nil, fmt.Errorf("execution %q: %w", executionID, ErrUnknownExecution)
	}
	return ec, nil
}

func (e *Engine) register(ec *ExecutionContext) {
	e.mu.Lock()
	e.runs[ec.ExecutionID] = ec
	e.mu.Unlock()
}

func (e *Engine) deregister(executionID string) {
	e.mu.Lock()
	delete(e.runs, executionID)
	e.mu.Unlock()
}

// run is the shared driver behind Execute and ExecuteStream.
func (e *Engine) run(ctx context.Context, plan *Plan, input any, stream chan<- TaskResult) (*ExecutionResult, error) {
	if ctx == nil {
		return nil, errors.New("engine: nil context")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	ec := newExecutionContext(ctx, plan)
	e.register(ec)
	defer e.deregister(ec.ExecutionID)
	defer ec.cancel()

	started := time.Now()

	if plan.GlobalTimeout > 0 {
		timer := time.AfterFunc(plan.GlobalTimeout, func() {
			ec.trip(reasonGlobalTimeout)
		})
		defer timer.Stop()
	}

	e.logger.Info().
		Str("execution_id", ec.ExecutionID).
		Str("plan_id", plan.ID).
		Str("strategy", string(plan.Strategy)).
		Int("tasks", len(plan.Tasks)).
		Msg("execution started")
	e.emit(Event{Type: EventRunStarted, Time: started, ExecutionID: ec.ExecutionID})

	switch plan.Strategy {
	case StrategySequential:
		e.runSequential(ec, input, stream)
	case StrategyParallel:
		e.runParallel(ec, input, stream)
	case StrategyRace:
		e.runRace(ec, input)
	case StrategyAll:
		e.runAll(ec, input)
	case StrategyDAG:
		e.runDAG(ec, input, stream)
	}

	completed := time.Now()
	status := e.finalStatus(ec)
	ec.setStatus(status)

	result := &ExecutionResult{
		ExecutionID: ec.ExecutionID,
		Status:      status,
		Results:     ec.Results(),
		Duration:    completed.Sub(started),
		StartedAt:   started,
		CompletedAt: completed,
	}

	e.logger.Info().
		Str("execution_id", ec.ExecutionID).
		Str("plan_id", plan.ID).
		Str("status", string(status)).
		Dur("duration", result.Duration).
		Msg("execution finished")
	e.emit(Event{Type: EventRunFinished, Time: completed, ExecutionID: ec.ExecutionID})

	return result, nil
}

// finalStatus applies the run-status precedence: a set cancellation switch
// wins over a fired global timer, which wins over any failed task.
func (e *Engine) finalStatus(ec *ExecutionContext) RunStatus {
	switch ec.cancelReason() {
	case reasonUser:
		return RunCancelled
	case reasonGlobalTimeout:
		return RunTimeout
	}
	if ec.anyTaskFailed() {
		return RunFailed
	}
	return RunCompleted
}

// record stores a settled result and fires the per-task surface exactly
// once, in completion order: completion/error callback, stream send,
// observer event, structured log.
func (e *Engine) record(ec *ExecutionContext, res TaskResult, stream chan<- TaskResult) {
	ec.setResult(res)

	ec.cbMu.Lock()
	defer ec.cbMu.Unlock()

	plan := ec.plan
	if res.Status == StatusCompleted {
		if plan.OnTaskComplete != nil {
			plan.OnTaskComplete(res)
		}
	} else if plan.OnTaskError != nil {
		plan.OnTaskError(res)
	}

	if stream != nil {
		stream <- res
	}

	e.emit(Event{
		Type:        EventTaskFinished,
		Time:        res.CompletedAt,
		ExecutionID: ec.ExecutionID,
		TaskID:      res.TaskID,
		Attempt:     res.Attempts,
		Result:      &res,
	})

	logEvent := e.logger.Info()
	if res.Status.IsFailure() {
		logEvent = e.logger.Warn().Err(res.Err)
	}
	logEvent.
		Str("execution_id", ec.ExecutionID).
		Str("task_id", res.TaskID).
		Str("status", string(res.Status)).
		Int("attempts", res.Attempts).
		Dur("duration", res.Duration).
		Msg("task finished")
}

func (e *Engine) emit(ev Event) {
	if e.observer != nil {
		e.observer.HandleEvent(ev)
	}
}

package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine.
var (
	// ErrTaskTimeout indicates a task attempt exceeded its per-task timeout.
	// Timeout failures are retried only when a retry policy lists a matching
	// retryable substring.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrRunCancelled indicates the run's cancellation switch was set while
	// the task was pending or in flight. Cancellation is never retried.
	ErrRunCancelled = errors.New("execution cancelled")

	// ErrUnknownExecution indicates the execution ID is not registered with
	// this engine instance (never started, or already settled).
	ErrUnknownExecution = errors.New("unknown execution")

	// ErrStreamUnsupported indicates the plan's strategy does not support
	// the streaming entry point.
	ErrStreamUnsupported = errors.New("strategy does not support streaming")
)

// PlanError reports a structural problem with a plan: a duplicate or empty
// task ID, a nil execute function, an unknown strategy, an unknown
// dependency, or a dependency cycle.
//
// Plan errors are fatal: they abort the run before any task executes and
// are returned from Execute/ExecuteStream rather than recorded as a
// TaskResult.
type PlanError struct {
	PlanID string
	Reason string
}

func (e *PlanError) Error() string {
	if e.PlanID == "" {
		return fmt.Sprintf("invalid plan: %s", e.Reason)
	}
	return fmt.Sprintf("invalid plan %q: %s", e.PlanID, e.Reason)
}

func planErrorf(planID, format string, args ...any) *PlanError {
	return &PlanError{PlanID: planID, Reason: fmt.Sprintf(format, args...)}
}

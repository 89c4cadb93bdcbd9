package engine

import (
	"context"
	"time"
)

// ExecuteFunc is the work for a task. It receives the run-scoped context
// (cancelled by Cancel, the plan's global timeout, or the per-task timeout),
// the task's input, and a per-attempt TaskContext.
//
// Bodies should honor ctx at their own suspension points when able; the
// engine abandons an attempt whose timer or cancellation signal fires first,
// but it cannot preempt a body that ignores ctx.
type ExecuteFunc func(ctx context.Context, input any, tc *TaskContext) (any, error)

// ConditionFunc gates a task. When it returns false the task is recorded as
// completed with a nil output and zero duration, without consuming any retry
// budget.
type ConditionFunc func(ctx context.Context, input any, tc *TaskContext) bool

// CompensateFunc is a best-effort rollback invoked after a task's retry
// budget is exhausted (and, under StrategyAll, on completed tasks when a
// sibling fails). Its error is logged, never escalated.
type CompensateFunc func(ctx context.Context, input, output any, tc *TaskContext) error

// BackoffKind selects the delay-growth function applied between retry
// attempts.
type BackoffKind string

const (
	// BackoffFixed waits BaseDelay before every retry.
	BackoffFixed BackoffKind = "fixed"

	// BackoffLinear waits BaseDelay multiplied by the attempt number.
	BackoffLinear BackoffKind = "linear"

	// BackoffExponential waits BaseDelay * 2^(attempt-1).
	BackoffExponential BackoffKind = "exponential"

	// BackoffJitter is exponential backoff scaled by a uniform random
	// factor in [0.5, 1.5), then clamped to MaxDelay.
	BackoffJitter BackoffKind = "jitter"
)

// RetryPolicy bounds how a failing task is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values <= 0 are treated as 1.
	MaxAttempts int

	// BaseDelay seeds the backoff function.
	BaseDelay time.Duration

	// Backoff selects the delay-growth function. Empty defaults to fixed.
	Backoff BackoffKind

	// MaxDelay clamps every computed delay when > 0.
	MaxDelay time.Duration

	// RetryableErrors, when non-empty, restricts retries to errors whose
	// message contains at least one of these substrings. When empty, every
	// task error is retryable; timeouts are retried only when explicitly
	// matched here, and cancellation is never retried.
	RetryableErrors []string
}

// DefaultTaskTimeout applies to tasks that do not set Timeout, unless the
// engine overrides it via WithDefaultTimeout.
const DefaultTaskTimeout = 30 * time.Second

// Task is a named, retryable, time-bounded unit of work inside a Plan.
type Task struct {
	// ID must be unique within the plan.
	ID string

	// Name is human-readable documentation.
	Name string

	// Execute is the work for this task. Required.
	Execute ExecuteFunc

	// Retry, when non-nil, enables bounded retry with backoff.
	Retry *RetryPolicy

	// Timeout bounds each attempt. Zero means the engine default.
	Timeout time.Duration

	// DependsOn lists task IDs that must complete first. Only StrategyDAG
	// consults it; every listed ID must exist in the same plan.
	DependsOn []string

	// Condition, when non-nil, is evaluated before the first attempt.
	Condition ConditionFunc

	// Compensate, when non-nil, is the task's best-effort rollback.
	Compensate CompensateFunc
}

// TaskStatus describes where a task is in its lifecycle. Only terminal
// statuses survive in a run's results.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusScheduled TaskStatus = "scheduled"
	StatusRunning   TaskStatus = "running"
	StatusPaused    TaskStatus = "paused"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
	StatusTimeout   TaskStatus = "timeout"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// IsFailure reports whether the status counts as a failure for run-status
// purposes.
func (s TaskStatus) IsFailure() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// TaskResult is the outcome of one task within one run. It is overwritten
// per attempt, never appended; only the final outcome survives.
type TaskResult struct {
	TaskID      string
	Status      TaskStatus
	Output      any
	Err         error
	Duration    time.Duration
	Attempts    int
	StartedAt   time.Time
	CompletedAt time.Time
}

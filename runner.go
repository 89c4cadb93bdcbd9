package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// runTask executes one task through its full retry budget and returns the
// settled result. It is shared by every strategy driver; recording the
// result (and firing callbacks) is the caller's job, which is what lets
// the race driver discard loser results.
func (e *Engine) runTask(ec *ExecutionContext, t *Task, input any) TaskResult {
	started := time.Now()

	if ec.Cancelled() {
		return TaskResult{
			TaskID:      t.ID,
			Status:      StatusCancelled,
			Err:         fmt.Errorf("task %q: %w", t.ID, ErrRunCancelled),
			StartedAt:   started,
			CompletedAt: started,
		}
	}

	if t.Condition != nil {
		tc := newTaskContext(ec, t, 0, e.logger, e.metricSink)
		if !t.Condition(ec.ctx, input, tc) {
			// Skipped-as-completed: nil output, zero duration, untouched
			// retry budget.
			e.logger.Debug().
				Str("execution_id", ec.ExecutionID).
				Str("task_id", t.ID).
				Msg("task condition false, skipping body")
			return TaskResult{
				TaskID:      t.ID,
				Status:      StatusCompleted,
				StartedAt:   started,
				CompletedAt: started,
			}
		}
	}

	maxAttempts := 1
	if t.Retry != nil && t.Retry.MaxAttempts > 1 {
		maxAttempts = t.Retry.MaxAttempts
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	e.emit(Event{
		Type:        EventTaskStarted,
		Time:        started,
		ExecutionID: ec.ExecutionID,
		TaskID:      t.ID,
		Attempt:     1,
	})

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		tc := newTaskContext(ec, t, attempt, e.logger, e.metricSink)

		out, err := e.invoke(ec, t, tc, input, timeout)
		if err == nil {
			now := time.Now()
			return TaskResult{
				TaskID:      t.ID,
				Status:      StatusCompleted,
				Output:      out,
				Duration:    now.Sub(started),
				Attempts:    attempt,
				StartedAt:   started,
				CompletedAt: now,
			}
		}
		lastErr = err

		if errors.Is(err, ErrRunCancelled) {
			break
		}
		if attempt >= maxAttempts || !retryEligible(t.Retry, err) {
			break
		}

		e.emit(Event{
			Type:        EventTaskRetrying,
			Time:        time.Now(),
			ExecutionID: ec.ExecutionID,
			TaskID:      t.ID,
			Attempt:     attempt,
			Err:         err,
		})
		e.logger.Debug().
			Err(err).
			Str("execution_id", ec.ExecutionID).
			Str("task_id", t.ID).
			Int("attempt", attempt).
			Msg("task attempt failed, retrying")

		if err := sleep(ec.ctx, backoffDelay(t.Retry, attempt)); err != nil {
			lastErr = fmt.Errorf("task %q: %w", t.ID, ErrRunCancelled)
			break
		}
	}

	now := time.Now()
	res := TaskResult{
		TaskID:      t.ID,
		Err:         lastErr,
		Duration:    now.Sub(started),
		Attempts:    attempts,
		StartedAt:   started,
		CompletedAt: now,
	}
	switch {
	case errors.Is(lastErr, ErrRunCancelled):
		res.Status = StatusCancelled
	case errors.Is(lastErr, ErrTaskTimeout):
		res.Status = StatusTimeout
	default:
		res.Status = StatusFailed
	}

	// Rollback on genuine failure only; a cancelled task never started its
	// terminal attempt's side effects toward completion.
	if res.Status != StatusCancelled && t.Compensate != nil {
		e.compensate(ec, t, input, nil, attempts)
	}
	return res
}

type attemptOutcome struct {
	out any
	err error
}

// invoke races one attempt of the task body against the per-task timer and
// the run's cancellation signal. First to settle wins; an abandoned body
// keeps running until it observes ctx itself.
func (e *Engine) invoke(ec *ExecutionContext, t *Task, tc *TaskContext, input any, timeout time.Duration) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ec.ctx, timeout)
	defer cancel()

	done := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptOutcome{err: fmt.Errorf("task %q panicked: %v", t.ID, r)}
			}
		}()
		out, err := t.Execute(attemptCtx, input, tc)
		done <- attemptOutcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.out, nil
		}
		// Bodies that honor ctx surface raw context errors; classify them
		// the same way as the races below.
		if ec.ctx.Err() != nil && errors.Is(o.err, context.Canceled) {
			return nil, fmt.Errorf("task %q: %w", t.ID, ErrRunCancelled)
		}
		if errors.Is(o.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("task %q: %w after %s", t.ID, ErrTaskTimeout, timeout)
		}
		return nil, o.err
	case <-attemptCtx.Done():
		if ec.ctx.Err() != nil {
			return nil, fmt.Errorf("task %q: %w", t.ID, ErrRunCancelled)
		}
		return nil, fmt.Errorf("task %q: %w after %s", t.ID, ErrTaskTimeout, timeout)
	}
}

// retryEligible applies the retry taxonomy: cancellation is never retried
// (handled by the caller); with no RetryableErrors every task error is
// retryable but timeouts are not; with RetryableErrors set, only matching
// substrings are retried, which is also the only way to retry a timeout.
func retryEligible(p *RetryPolicy, err error) bool {
	if p == nil {
		return false
	}
	if len(p.RetryableErrors) == 0 {
		return !errors.Is(err, ErrTaskTimeout)
	}
	msg := err.Error()
	for _, sub := range p.RetryableErrors {
		if sub != "" && strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// compensate invokes a task's rollback best-effort: its error (or panic)
// is logged and emitted, never escalated, so it cannot mask the original
// failure or cascade during rollback.
func (e *Engine) compensate(ec *ExecutionContext, t *Task, input, output any, attempt int) {
	tc := newTaskContext(ec, t, attempt, e.logger, e.metricSink)

	// Rollback is needed precisely when the run context may already be
	// dead, so it gets a detached context.
	ctx := context.WithoutCancel(ec.ctx)

	defer func() {
		if r := recover(); r != nil {
			e.compensationFailed(ec, t, fmt.Errorf("compensation panicked: %v", r))
		}
	}()
	if err := t.Compensate(ctx, input, output, tc); err != nil {
		e.compensationFailed(ec, t, err)
	}
}

func (e *Engine) compensationFailed(ec *ExecutionContext, t *Task, err error) {
	e.logger.Error().
		Err(err).
		Str("execution_id", ec.ExecutionID).
		Str("task_id", t.ID).
		Msg("compensation failed")
	e.emit(Event{
		Type:        EventCompensationFailed,
		Time:        time.Now(),
		ExecutionID: ec.ExecutionID,
		TaskID:      t.ID,
		Err:         err,
	})
}

// sleep waits for the backoff delay, aborting early if the run is
// cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

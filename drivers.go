package engine

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// runSequential runs tasks one at a time in plan order, threading each
// task's output into the next task's input.
//
// A failing task without a rollback stops the chain: the remaining tasks
// never acquire a result. A failing task with a rollback lets the chain
// continue; the next task receives the failing task's input unchanged.
// A condition-skipped task also passes its input through unchanged.
func (e *Engine) runSequential(ec *ExecutionContext, input any, stream chan<- TaskResult) {
	in := input
	for i := range ec.plan.Tasks {
		t := &ec.plan.Tasks[i]

		if err := ec.gate.wait(ec.ctx); err != nil {
			return
		}
		if ec.Cancelled() {
			return
		}

		res := e.runTask(ec, t, in)
		e.record(ec, res, stream)

		switch {
		case res.Status == StatusCompleted:
			if res.Attempts > 0 {
				in = res.Output
			}
		case res.Status == StatusCancelled:
			return
		case t.Compensate == nil:
			return
		}
	}
}

// runParallel runs every task concurrently with the same input.
func (e *Engine) runParallel(ec *ExecutionContext, input any, stream chan<- TaskResult) {
	e.collectConcurrent(ec, input, stream)
}

// runRace runs every task concurrently and records only the first to
// settle, success or failure. The run's context is then cancelled to
// abandon the losers cooperatively; their results are discarded in place.
func (e *Engine) runRace(ec *ExecutionContext, input any) {
	settled := make(chan TaskResult, len(ec.plan.Tasks))
	for i := range ec.plan.Tasks {
		go func(t *Task) {
			_ = ec.gate.wait(ec.ctx)
			settled <- e.runTask(ec, t, input)
		}(&ec.plan.Tasks[i])
	}

	winner := <-settled
	e.record(ec, winner, nil)
	ec.trip(reasonRaceSettled)
}

// runAll runs every task concurrently and waits for all of them. If any
// task failed, compensation is invoked once on every task that completed
// its body and declares a rollback. (The failing tasks themselves were
// already compensated by the per-task runner.)
func (e *Engine) runAll(ec *ExecutionContext, input any) {
	results := e.collectConcurrent(ec, input, nil)

	anyFailed := false
	for _, r := range results {
		if r.Status.IsFailure() {
			anyFailed = true
			break
		}
	}
	if !anyFailed {
		return
	}

	for i, r := range results {
		t := &ec.plan.Tasks[i]
		// Attempts == 0 means the condition skipped the body: nothing ran,
		// nothing to roll back.
		if r.Status == StatusCompleted && r.Attempts > 0 && t.Compensate != nil {
			e.compensate(ec, t, input, r.Output, r.Attempts)
		}
	}
}

// collectConcurrent dispatches every task concurrently with the same
// input, bounded by the engine's worker limit, and returns the settled
// results indexed by plan position.
func (e *Engine) collectConcurrent(ec *ExecutionContext, input any, stream chan<- TaskResult) []TaskResult {
	sem := semaphore.NewWeighted(int64(e.maxWorkers))
	results := make([]TaskResult, len(ec.plan.Tasks))

	var wg sync.WaitGroup
	for i := range ec.plan.Tasks {
		wg.Add(1)
		go func(i int, t *Task) {
			defer wg.Done()

			_ = ec.gate.wait(ec.ctx)
			// Acquisition fails only when the run is cancelled, in which
			// case runTask short-circuits to a cancelled result anyway.
			if sem.Acquire(ec.ctx, 1) == nil {
				defer sem.Release(1)
			}

			res := e.runTask(ec, t, input)
			results[i] = res
			e.record(ec, res, stream)
		}(i, &ec.plan.Tasks[i])
	}
	wg.Wait()
	return results
}

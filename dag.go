package engine

import (
	"golang.org/x/sync/semaphore"
)

// runDAG dispatches tasks as their declared dependencies complete.
//
// The scheduler is settlement-driven rather than polled: every finished
// task reports on a channel, and a dependent is launched the moment its
// last dependency completes. Dependents of a failed (or timed-out or
// cancelled) task can never become ready; they are left without a result
// and the loop drains once nothing is in flight.
func (e *Engine) runDAG(ec *ExecutionContext, input any, stream chan<- TaskResult) {
	plan := ec.plan
	n := len(plan.Tasks)
	index := plan.taskIndex()

	remaining := make([]int, n)
	dependents := make([][]int, n)
	for i := range plan.Tasks {
		remaining[i] = len(plan.Tasks[i].DependsOn)
		for _, dep := range plan.Tasks[i].DependsOn {
			d := index[dep]
			dependents[d] = append(dependents[d], i)
		}
	}

	type settled struct {
		idx int
		res TaskResult
	}
	doneCh := make(chan settled, n)
	sem := semaphore.NewWeighted(int64(e.maxWorkers))

	inflight := 0
	launch := func(i int) {
		if ec.Cancelled() {
			// Stop scheduling: an undispatched task never acquires a result.
			return
		}
		inflight++
		go func(i int, t *Task) {
			_ = ec.gate.wait(ec.ctx)
			if sem.Acquire(ec.ctx, 1) == nil {
				defer sem.Release(1)
			}
			doneCh <- settled{idx: i, res: e.runTask(ec, t, dagInput(ec, t, input))}
		}(i, &plan.Tasks[i])
	}

	for i := range plan.Tasks {
		if remaining[i] == 0 {
			launch(i)
		}
	}

	for inflight > 0 {
		s := <-doneCh
		inflight--
		e.record(ec, s.res, stream)

		if s.res.Status != StatusCompleted {
			continue
		}
		for _, d := range dependents[s.idx] {
			remaining[d]--
			if remaining[d] == 0 {
				launch(d)
			}
		}
	}
}

// dagInput assembles a task's input from its dependency outputs: zero
// dependencies gets the plan input, one dependency gets that dependency's
// output, and several get a []any ordered like the task's DependsOn list.
func dagInput(ec *ExecutionContext, t *Task, input any) any {
	switch len(t.DependsOn) {
	case 0:
		return input
	case 1:
		r, _ := ec.Result(t.DependsOn[0])
		return r.Output
	default:
		outs := make([]any, len(t.DependsOn))
		for i, dep := range t.DependsOn {
			r, _ := ec.Result(dep)
			outs[i] = r.Output
		}
		return outs
	}
}

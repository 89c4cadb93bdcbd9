package engine

import (
	"time"
)

// Strategy is the scheduling discipline for a plan's tasks.
type Strategy string

const (
	// StrategySequential runs tasks one at a time in plan order, threading
	// each task's output into the next task's input.
	StrategySequential Strategy = "sequential"

	// StrategyParallel runs every task concurrently with the same input.
	StrategyParallel Strategy = "parallel"

	// StrategyRace runs every task concurrently and records only the first
	// task to settle, success or failure.
	StrategyRace Strategy = "race"

	// StrategyAll runs every task concurrently; if any task fails,
	// compensation is invoked on every task that completed and declares one.
	StrategyAll Strategy = "all"

	// StrategyDAG dispatches tasks as their dependencies complete.
	StrategyDAG Strategy = "dag"
)

// Valid reports whether s is one of the five known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySequential, StrategyParallel, StrategyRace, StrategyAll, StrategyDAG:
		return true
	}
	return false
}

// Plan is an ordered set of tasks plus a strategy. It is treated as
// immutable once handed to Execute or ExecuteStream.
type Plan struct {
	// ID identifies the plan in logs and events.
	ID string

	// Name is human-readable documentation.
	Name string

	// Strategy selects the scheduling discipline.
	Strategy Strategy

	// Tasks is the ordered task list. Order is significant for
	// StrategySequential only.
	Tasks []Task

	// GlobalTimeout, when > 0, bounds the whole run. When the timer fires
	// the run's cancellation switch is set and the run status becomes
	// RunTimeout.
	GlobalTimeout time.Duration

	// OnTaskComplete, when non-nil, fires once per task that settles
	// completed, in completion order.
	OnTaskComplete func(TaskResult)

	// OnTaskError, when non-nil, fires once per task that settles failed,
	// cancelled, or timed out, in completion order.
	OnTaskError func(TaskResult)
}

// Validate checks the plan's structure: unique non-empty task IDs, non-nil
// execute functions, a known strategy, dependency IDs that exist in the
// plan, and an acyclic dependency graph. A structural problem is a fatal
// plan error, never a per-task failure.
func (p *Plan) Validate() error {
	if p == nil {
		return planErrorf("", "nil plan")
	}
	if !p.Strategy.Valid() {
		return planErrorf(p.ID, "unknown strategy %q", p.Strategy)
	}
	if len(p.Tasks) == 0 {
		return planErrorf(p.ID, "no tasks")
	}

	index := make(map[string]int, len(p.Tasks))
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.ID == "" {
			return planErrorf(p.ID, "task at index %d has empty ID", i)
		}
		if _, dup := index[t.ID]; dup {
			return planErrorf(p.ID, "duplicate task ID %q", t.ID)
		}
		if t.Execute == nil {
			return planErrorf(p.ID, "task %q has nil Execute", t.ID)
		}
		index[t.ID] = i
	}

	// Resolve dependencies and verify acyclicity with Kahn's algorithm.
	indegree := make([]int, len(p.Tasks))
	dependents := make([][]int, len(p.Tasks))
	for i := range p.Tasks {
		t := &p.Tasks[i]
		seen := make(map[string]bool, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return planErrorf(p.ID, "task %q depends on itself", t.ID)
			}
			if seen[dep] {
				return planErrorf(p.ID, "task %q lists dependency %q twice", t.ID, dep)
			}
			seen[dep] = true
			depIdx, ok := index[dep]
			if !ok {
				return planErrorf(p.ID, "task %q depends on unknown task %q", t.ID, dep)
			}
			dependents[depIdx] = append(dependents[depIdx], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, len(p.Tasks))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		visited++
		for _, v := range dependents[u] {
			indegree[v]--
			if indegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if visited != len(p.Tasks) {
		return planErrorf(p.ID, "dependency graph has a cycle")
	}

	return nil
}

// taskIndex maps task IDs to positions in p.Tasks. Callers must have
// validated the plan first.
func (p *Plan) taskIndex() map[string]int {
	index := make(map[string]int, len(p.Tasks))
	for i := range p.Tasks {
		index[p.Tasks[i].ID] = i
	}
	return index
}

package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	engine "github.com/Sdkwork-Cloud/sdkwork-agent-sub002"
)

func TestDAGThreadsDependencyOutputs(t *testing.T) {
	res := mustExecute(t, engine.New(), &engine.Plan{
		ID:       "diamond",
		Strategy: engine.StrategyDAG,
		Tasks: []engine.Task{
			{
				ID: "root",
				Execute: func(_ context.Context, input any, _ *engine.TaskContext) (any, error) {
					return input, nil
				},
			},
			{
				ID:        "left",
				DependsOn: []string{"root"},
				Execute: func(_ context.Context, input any, _ *engine.TaskContext) (any, error) {
					return input.(int) + 1, nil
				},
			},
			{
				ID:        "right",
				DependsOn: []string{"root"},
				Execute: func(_ context.Context, input any, _ *engine.TaskContext) (any, error) {
					return input.(int) + 2, nil
				},
			},
			{
				ID:        "join",
				DependsOn: []string{"left", "right"},
				Execute: func(_ context.Context, input any, _ *engine.TaskContext) (any, error) {
					return input, nil
				},
			},
		},
	}, 0)

	if res.Status != engine.RunCompleted {
		t.Fatalf("expected completed, got %q", res.Status)
	}

	// A fan-in task receives one slice entry per dependency, in DependsOn
	// order, regardless of which branch finished first.
	join, ok := taskResult(t, res, "join").Output.([]any)
	if !ok {
		t.Fatalf("fan-in input should be a slice, got %T", taskResult(t, res, "join").Output)
	}
	if len(join) != 2 || join[0] != 1 || join[1] != 2 {
		t.Errorf("expected fan-in [1 2], got %v", join)
	}
}

func TestDAGSingleDependencyGetsBareOutput(t *testing.T) {
	res := mustExecute(t, engine.New(), &engine.Plan{
		ID:       "pipe",
		Strategy: engine.StrategyDAG,
		Tasks: []engine.Task{
			{
				ID: "head",
				Execute: func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
					return "payload", nil
				},
			},
			{
				ID:        "tail",
				DependsOn: []string{"head"},
				Execute: func(_ context.Context, input any, _ *engine.TaskContext) (any, error) {
					return input, nil
				},
			},
		},
	}, nil)

	if got := taskResult(t, res, "tail").Output; got != "payload" {
		t.Errorf("single dependency should pass its bare output, got %v", got)
	}
}

func TestDAGDependentsOfFailedTaskNeverRun(t *testing.T) {
	var orphanRuns int32

	res := mustExecute(t, engine.New(), &engine.Plan{
		ID:       "broken-graph",
		Strategy: engine.StrategyDAG,
		Tasks: []engine.Task{
			{ID: "ok", Execute: increment},
			{
				ID: "bad",
				Execute: func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
					return nil, errors.New("dead branch")
				},
			},
			{
				ID:        "orphan",
				DependsOn: []string{"bad"},
				Execute: func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
					atomic.AddInt32(&orphanRuns, 1)
					return nil, nil
				},
			},
			{
				ID:        "grand-orphan",
				DependsOn: []string{"orphan"},
				Execute: func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
					atomic.AddInt32(&orphanRuns, 1)
					return nil, nil
				},
			},
			{ID: "independent", DependsOn: []string{"ok"}, Execute: increment},
		},
	}, 0)

	if res.Status != engine.RunFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if orphanRuns != 0 {
		t.Errorf("dependents of a failed task must not run, got %d runs", orphanRuns)
	}
	if _, ok := res.Results["orphan"]; ok {
		t.Errorf("an unlaunched dependent should have no result entry")
	}
	if taskResult(t, res, "independent").Status != engine.StatusCompleted {
		t.Errorf("the independent branch should still complete")
	}
}

func TestDAGRejectsCycleBeforeRunning(t *testing.T) {
	var ran int32
	body := func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	}

	_, err := engine.New().Execute(context.Background(), &engine.Plan{
		ID:       "loop",
		Strategy: engine.StrategyDAG,
		Tasks: []engine.Task{
			{ID: "a", DependsOn: []string{"c"}, Execute: body},
			{ID: "b", DependsOn: []string{"a"}, Execute: body},
			{ID: "c", DependsOn: []string{"b"}, Execute: body},
		},
	}, nil)

	var perr *engine.PlanError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a PlanError for the cycle, got %v", err)
	}
	if ran != 0 {
		t.Errorf("no task may run when validation fails, got %d runs", ran)
	}
}

func TestDAGIndependentBranchesRunConcurrently(t *testing.T) {
	gate := make(chan struct{})

	meet := func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
		// Both branches must be in flight at once for either to finish.
		select {
		case gate <- struct{}{}:
		case <-gate:
		case <-time.After(2 * time.Second):
			return nil, errors.New("branches never overlapped")
		}
		return nil, nil
	}

	res := mustExecute(t, engine.New(engine.WithMaxWorkers(2)), &engine.Plan{
		ID:       "wide",
		Strategy: engine.StrategyDAG,
		Tasks: []engine.Task{
			{ID: "left", Execute: meet},
			{ID: "right", Execute: meet},
		},
	}, nil)

	if res.Status != engine.RunCompleted {
		t.Fatalf("expected completed, got %q", res.Status)
	}
}

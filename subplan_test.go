package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	engine "github.com/Sdkwork-Cloud/sdkwork-agent-sub002"
)

func TestSubPlanRunsNestedPlan(t *testing.T) {
	eng := engine.New()

	inner := &engine.Plan{
		ID:       "inner",
		Strategy: engine.StrategySequential,
		Tasks: []engine.Task{
			{ID: "x", Execute: increment},
			{ID: "y", Execute: increment},
		},
	}

	res := mustExecute(t, eng, singlePlan(engine.Task{
		ID:      "nested",
		Execute: engine.SubPlan(eng, inner),
	}), 10)

	tr := taskResult(t, res, "nested")
	if tr.Status != engine.StatusCompleted {
		t.Fatalf("expected completed, got %q (err=%v)", tr.Status, tr.Err)
	}
	innerRes, ok := tr.Output.(*engine.ExecutionResult)
	if !ok {
		t.Fatalf("expected the inner ExecutionResult as output, got %T", tr.Output)
	}
	if got := innerRes.Results["y"].Output; got != 12 {
		t.Errorf("inner chain should have received the outer input, got %v", got)
	}
}

func TestSubPlanFailureSurfacesOnOuterTask(t *testing.T) {
	eng := engine.New()

	inner := &engine.Plan{
		ID:       "inner-broken",
		Strategy: engine.StrategySequential,
		Tasks: []engine.Task{
			{
				ID: "bad",
				Execute: func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
					return nil, errors.New("inner failure")
				},
			},
		},
	}

	var retries int
	res := mustExecute(t, eng, singlePlan(engine.Task{
		ID: "nested",
		Execute: func(ctx context.Context, input any, tc *engine.TaskContext) (any, error) {
			retries++
			return engine.SubPlan(eng, inner)(ctx, input, tc)
		},
		Retry: &engine.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}), nil)

	tr := taskResult(t, res, "nested")
	if tr.Status != engine.StatusFailed {
		t.Fatalf("expected failed, got %q", tr.Status)
	}
	if retries != 2 {
		t.Errorf("the outer retry policy should cover the inner plan as a unit, got %d tries", retries)
	}
}

func TestSubPlanFuncBranches(t *testing.T) {
	eng := engine.New()

	searchPlan := &engine.Plan{
		ID:       "search",
		Strategy: engine.StrategySequential,
		Tasks: []engine.Task{
			{
				ID: "query",
				Execute: func(_ context.Context, _ any, _ *engine.TaskContext) (any, error) {
					return "hits", nil
				},
			},
		},
	}

	choose := func(_ context.Context, input any, _ *engine.TaskContext) (*engine.Plan, error) {
		if input == "needs-search" {
			return searchPlan, nil
		}
		return nil, nil
	}

	res := mustExecute(t, eng, singlePlan(engine.Task{
		ID:      "branch",
		Execute: engine.SubPlanFunc(eng, choose),
	}), "needs-search")
	if _, ok := taskResult(t, res, "branch").Output.(*engine.ExecutionResult); !ok {
		t.Errorf("selected branch should run the sub-plan")
	}

	res = mustExecute(t, eng, singlePlan(engine.Task{
		ID:      "branch",
		Execute: engine.SubPlanFunc(eng, choose),
	}), "direct")
	if out := taskResult(t, res, "branch").Output; out != nil {
		t.Errorf("a nil plan should skip the branch, got %v", out)
	}
}

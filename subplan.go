package engine

import (
	"context"
	"fmt"
)

// SubPlan adapts a nested plan into a task body, so one task of an outer
// plan can execute a whole inner plan. The inner run inherits the outer
// attempt's context for cancellation and receives the task's input as its
// plan input.
//
// The body's output is the inner ExecutionResult; a run that settles as
// anything but completed surfaces as the task's error, which makes the
// outer task's retry and compensation policy apply to the inner plan as a
// unit.
func SubPlan(e *Engine, plan *Plan) ExecuteFunc {
	return func(ctx context.Context, input any, tc *TaskContext) (any, error) {
		res, err := e.Execute(ctx, plan, input)
		if err != nil {
			return nil, err
		}
		if res.Status != RunCompleted {
			return res, fmt.Errorf("sub-plan %q settled as %s", plan.ID, res.Status)
		}
		return res, nil
	}
}

// SubPlanFunc is SubPlan with the plan chosen at run time, for branches
// that depend on earlier task outputs. Returning a nil plan with a nil
// error skips the branch: the body completes with a nil output.
func SubPlanFunc(e *Engine, choose func(ctx context.Context, input any, tc *TaskContext) (*Plan, error)) ExecuteFunc {
	return func(ctx context.Context, input any, tc *TaskContext) (any, error) {
		plan, err := choose(ctx, input, tc)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, nil
		}
		return SubPlan(e, plan)(ctx, input, tc)
	}
}

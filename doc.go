// Package engine is a task-orchestration core: it executes declarative
// plans of named, retryable, time-bounded tasks under one of five
// scheduling strategies and produces structured per-task and per-run
// results.
//
// A Plan carries an ordered set of Tasks plus a Strategy:
//
//   - StrategySequential runs tasks one at a time, threading each task's
//     output into the next task's input.
//   - StrategyParallel runs every task concurrently with the same input.
//   - StrategyRace runs every task concurrently and records only the
//     first task to settle; the rest are abandoned cooperatively.
//   - StrategyAll runs every task concurrently and, if any task fails,
//     invokes best-effort compensation on every task that completed.
//   - StrategyDAG dispatches tasks as their declared dependencies
//     complete, feeding dependency outputs into dependent inputs.
//
// Each task may declare a retry policy with backoff, a per-task timeout,
// a run condition, and a compensating rollback. Task failures are fully
// contained: Execute never returns an error for a failing task body, only
// for structural plan errors discovered before any task runs.
//
// The engine holds no state beyond process memory. A process restart
// loses all run state; durability is the caller's responsibility.
package engine

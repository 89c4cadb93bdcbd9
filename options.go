package engine

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the engine's structured logger. The default is a no-op
// logger; pass one to get run/task lifecycle logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxWorkers bounds how many task bodies run concurrently under the
// parallel, all, and dag strategies.
//
// Values <= 0 are normalized to runtime.NumCPU().
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		e.maxWorkers = n
	}
}

// WithDefaultTimeout overrides DefaultTaskTimeout for tasks that do not
// set their own Timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithObserver attaches an observer to receive lifecycle events. Repeated
// use fans events out to every attached observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o == nil {
			return
		}
		if e.observer == nil {
			e.observer = o
			return
		}
		e.observer = MultiObserver(e.observer, o)
	}
}

// WithMetricSink receives the named numeric measurements that task bodies
// emit through TaskContext.Metric.
func WithMetricSink(sink func(name string, value float64)) Option {
	return func(e *Engine) {
		e.metricSink = sink
	}
}

func defaultMaxWorkers() int {
	return runtime.NumCPU()
}

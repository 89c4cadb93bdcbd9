package engine

import (
	"time"
)

// EventType describes a lifecycle event for a run or one of its tasks.
type EventType int

const (
	EventRunStarted EventType = iota
	EventRunFinished
	EventTaskStarted
	EventTaskFinished
	EventTaskRetrying
	EventCompensationFailed
)

// Event is a fire-and-forget notification about run/task lifecycle.
type Event struct {
	Type        EventType
	Time        time.Time
	ExecutionID string
	TaskID      string

	// Attempt is the attempt number for task-scoped events, 0 otherwise.
	Attempt int

	// Result is a snapshot of the settled result for EventTaskFinished
	// and EventRunFinished (per-task), nil otherwise.
	Result *TaskResult

	// Err carries the triggering error for retry and compensation events.
	Err error
}

// Observer receives lifecycle events. Implementations must tolerate
// concurrent calls and should avoid blocking; the engine emits
// synchronously from driver goroutines.
type Observer interface {
	HandleEvent(Event)
}

type multiObserver []Observer

func (m multiObserver) HandleEvent(ev Event) {
	for _, o := range m {
		if o != nil {
			o.HandleEvent(ev)
		}
	}
}

// MultiObserver fans events out to every given observer in order.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) HandleEvent(ev Event) { f(ev) }

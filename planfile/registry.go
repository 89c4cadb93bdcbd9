package planfile

import (
	"fmt"
	"sync"

	engine "github.com/Sdkwork-Cloud/sdkwork-agent-sub002"
)

// Handler supplies the executable parts of a task: the body, an optional
// rollback, and an optional run condition.
type Handler struct {
	Execute    engine.ExecuteFunc
	Compensate engine.CompensateFunc
	Condition  engine.ConditionFunc
}

// Registry maps handler names to Handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under the given name. The name must be unique
// and the handler must carry an Execute function.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("planfile: handler name is required")
	}
	if h.Execute == nil {
		return fmt.Errorf("planfile: handler %q has nil Execute", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("planfile: handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// RegisterFunc registers a bare execute function under the given name.
func (r *Registry) RegisterFunc(name string, fn engine.ExecuteFunc) error {
	return r.Register(name, Handler{Execute: fn})
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered handler names, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

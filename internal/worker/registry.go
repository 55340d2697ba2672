// Package worker implements the Worker Pool tier (§4.4): an execution loop
// per lane that pulls one WorkItem at a time, resolves it against a
// Registry, and runs it with bounded retry.
package worker

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Context is passed to every Handler. JobID is always populated, replacing
// the original's reserved-kwarg injection (SPEC_FULL.md §3b).
type Context struct {
	JobID string
}

// Handler is the contract every registered action implements.
type Handler func(ctx *Context, args []any, kwargs map[string]any) (json.RawMessage, error)

// Registry maps action to Handler, the explicit dispatch table §9 asks for
// in place of the original's reflection against an application object.
// Grounded on the teacher's internal/jobs/runtime.Registry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under action. Registration is expected at worker
// startup, not concurrently with Get, though Get itself is safe to call
// from many worker goroutines.
func (r *Registry) Register(action string, h Handler) error {
	if action == "" {
		return fmt.Errorf("worker: empty action name")
	}
	if h == nil {
		return fmt.Errorf("worker: nil handler for action %q", action)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[action]; exists {
		return fmt.Errorf("worker: handler already registered for action %q", action)
	}
	r.handlers[action] = h
	return nil
}

func (r *Registry) Get(action string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[action]
	return h, ok
}

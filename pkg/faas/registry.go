package faas

import (
	"sync"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// Registry holds functions the embedding application has registered
// ahead of time, keyed by the caller-chosen FunctionID.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Callable
}

// NewRegistry creates an empty function registry.
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]Callable)}
}

// Register adds or replaces a callable.
func (r *Registry) Register(c Callable) error {
	if c.FunctionID == "" {
		return util.NewValidationError("function id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[c.FunctionID] = c
	return nil
}

// Lookup returns the callable registered under id, if any.
func (r *Registry) Lookup(id string) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.functions[id]
	return c, ok
}

// internal/events/registry.go
package events

import (
	"sort"
	"sync"
)

/*
 * Event listener registry.
 *
 * Listeners are action blocks keyed by event name. Registration order is
 * dispatch order; the same block registered twice runs twice. The registry
 * is safe for concurrent use so a runtime host can swap listener sets while
 * a CLI command inspects them.
 */

// Registry holds ordered listener action blocks per event name.
type Registry struct {
	mu        sync.RWMutex
	listeners map[string][]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string][]any)}
}

// Add appends actions to the listeners of event.
func (r *Registry) Add(event string, actions any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[event] = append(r.listeners[event], actions)
}

// Listeners returns a copy of the listeners registered for event.
func (r *Registry) Listeners(event string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]any(nil), r.listeners[event]...)
}

// Events returns every event name with at least one listener, sorted.
func (r *Registry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.listeners))
	for name := range r.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of listeners across all events.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, l := range r.listeners {
		n += len(l)
	}
	return n
}

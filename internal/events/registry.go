package events

import (
	"context"
	"sort"
	"sync"
)

// Handler processes one event. A returned error sends the event to the
// dead-letter sink; it never reaches the bus.
type Handler func(ctx context.Context, env Envelope) error

// Registry is the event-type dispatch table.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to an event type.
// Panics on duplicate registration to catch wiring mistakes early.
func (r *Registry) Register(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[eventType]; exists {
		panic("events: duplicate handler registered for type: " + eventType)
	}
	r.handlers[eventType] = h
}

func (r *Registry) Lookup(eventType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	return h, ok
}

// Types returns the registered event types, sorted. Subscribers use it as the
// default topic or subject list.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

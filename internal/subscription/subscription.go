// Package subscription maps channel ids to handlers: at most one handler
// per channel, re-subscribing replaces the prior one.
package subscription

import (
	"context"
	"sync"
)

// Handler processes a payload and returns a result or an error. Both sync
// handlers (returning immediately) and handlers that block are awaited
// uniformly by the call engine — there is no separate "promise" type in Go,
// a blocking function call already is the synchronous wait point.
type Handler func(ctx context.Context, payload any) (any, error)

// Registry is the single-handler-per-channel subscription table.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// On registers (or replaces) the handler for id and returns an unsubscribe
// function.
func (r *Registry) On(id string, h Handler) (unsubscribe func()) {
	r.mu.Lock()
	r.handlers[id] = h
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.handlers[id]; ok {
			// Only remove if nobody re-subscribed since this handle was issued.
			if funcsEqual(current, h) {
				delete(r.handlers, id)
			}
		}
	}
}

// Get returns the handler registered for id, if any.
func (r *Registry) Get(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// Forget removes the handler for id unconditionally. Returns whether one
// existed.
func (r *Registry) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[id]; !ok {
		return false
	}
	delete(r.handlers, id)
	return true
}

// Clear removes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}

// funcsEqual compares two Handler values by identity. Go forbids comparing
// func values directly; reflect's pointer-of-func trick gives us reference
// equality, which is all an unsubscribe guard needs.
func funcsEqual(a, b Handler) bool {
	return reflectFuncEqual(a, b)
}

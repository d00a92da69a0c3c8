package query

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Handler answers queries of one query id. A nil response means there is
// nothing to send back.
type Handler interface {
	HandleQuery(ctx context.Context, msg *Message) (*Message, error)
}

type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

func (f HandlerFunc) HandleQuery(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// Registry maps query ids to handlers. The last registration wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(queryID string, h Handler) {
	r.mu.Lock()
	r.handlers[queryID] = h
	r.mu.Unlock()
}

func (r *Registry) Lookup(queryID string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[queryID]
	r.mu.RUnlock()
	return h, ok
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

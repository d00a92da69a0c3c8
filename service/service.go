package service

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
)

// EventHandler receives fire-and-forget calls.
type EventHandler interface {
	HandleIncomingEvent(ctx context.Context, payload string) error
}

// MethodHandler receives request/response calls.
type MethodHandler interface {
	HandleIncomingMethod(ctx context.Context, payload string) (string, error)
}

// Handler serves both call styles.
type Handler interface {
	EventHandler
	MethodHandler
}

type EventFunc func(ctx context.Context, payload string) error

func (f EventFunc) HandleIncomingEvent(ctx context.Context, payload string) error {
	return f(ctx, payload)
}

type MethodFunc func(ctx context.Context, payload string) (string, error)

func (f MethodFunc) HandleIncomingMethod(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}

type Registry struct {
	mu       sync.RWMutex
	events   map[contract.Descriptor]EventHandler
	methods  map[contract.Descriptor]MethodHandler
	declared map[contract.Descriptor]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		events:   make(map[contract.Descriptor]EventHandler),
		methods:  make(map[contract.Descriptor]MethodHandler),
		declared: make(map[contract.Descriptor]struct{}),
	}
}

// Declare advertises descriptors without attaching handlers.
func (r *Registry) Declare(descs ...contract.Descriptor) {
	r.mu.Lock()
	for _, d := range descs {
		r.declared[d] = struct{}{}
	}
	r.mu.Unlock()
}

func (r *Registry) IsDeclared(d contract.Descriptor) bool {
	r.mu.RLock()
	_, ok := r.declared[d]
	r.mu.RUnlock()
	return ok
}

func (r *Registry) RegisterEvent(d contract.Descriptor, h EventHandler) {
	r.mu.Lock()
	r.events[d] = h
	r.declared[d] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) RegisterMethod(d contract.Descriptor, h MethodHandler) {
	r.mu.Lock()
	r.methods[d] = h
	r.declared[d] = struct{}{}
	r.mu.Unlock()
}

// Register binds h for both call styles.
func (r *Registry) Register(d contract.Descriptor, h Handler) {
	r.mu.Lock()
	r.events[d] = h
	r.methods[d] = h
	r.declared[d] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) LookupEvent(d contract.Descriptor) (EventHandler, bool) {
	r.mu.RLock()
	h, ok := r.events[d]
	r.mu.RUnlock()
	return h, ok
}

func (r *Registry) LookupMethod(d contract.Descriptor) (MethodHandler, bool) {
	r.mu.RLock()
	h, ok := r.methods[d]
	r.mu.RUnlock()
	return h, ok
}

// Descriptors returns every advertised descriptor sorted by FQN then version.
func (r *Registry) Descriptors() []contract.Descriptor {
	r.mu.RLock()
	list := make([]contract.Descriptor, 0, len(r.declared))
	for d := range r.declared {
		list = append(list, d)
	}
	r.mu.RUnlock()
	sortDescriptors(list)
	return list
}

func sortDescriptors(list []contract.Descriptor) {
	slices.SortFunc(list, func(a, b contract.Descriptor) int {
		if c := strings.Compare(a.FQN, b.FQN); c != 0 {
			return c
		}
		return strings.Compare(a.SvcVersion, b.SvcVersion)
	})
}

// Package appctx holds the process-wide hosting context shared by the
// interop services, such as the hosting state and the hosted file name.
package appctx

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

// Well known keys.
const (
	KeyHostingState   = "aw_hosting_state"
	KeyHostingEnabled = "aw_hosting_enabled"
	KeyRemoteEnabled  = "aw_hosting_remote_enabled"
	KeyHostedFileName = "HostedFileNameContext"
	KeyOccurrenceMgmt = "occmgmtContext"
	KeyHostConfig     = "aw_hosting_config"
	KeyHostSession    = "aw_hosting_session"
)

const DefaultMaxEntries = 1000

var (
	ErrEmptyKey = errors.New("appctx: empty key")
	ErrFull     = errors.New("appctx: too many entries")
)

type Store struct {
	mu         sync.RWMutex
	data       map[string]any
	maxEntries int
}

type Option func(*Store)

func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		data:       make(map[string]any),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	return v, ok
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// String returns the value for key when it holds a string.
func (s *Store) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Bool returns the value for key when it holds a bool.
func (s *Store) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

func (s *Store) Set(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && s.maxEntries > 0 && len(s.data) >= s.maxEntries {
		return ErrFull
	}
	s.data[key] = value
	return nil
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

// Snapshot returns a shallow copy of the store.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

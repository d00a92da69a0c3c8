package service

import (
	"fmt"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
)

// Service list update actions.
const (
	ActionReplace = "replace"
	ActionAdd     = "add"
	ActionRemove  = "remove"
)

// Directory tracks the services the other side has advertised.
type Directory struct {
	mu      sync.RWMutex
	entries map[contract.Descriptor]struct{}
}

func NewDirectory() *Directory {
	return &Directory{entries: make(map[contract.Descriptor]struct{})}
}

// Update applies a service list update. An empty action adds to the list.
func (d *Directory) Update(action string, list []contract.Descriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch action {
	case "", ActionAdd:
		for _, desc := range list {
			d.entries[desc] = struct{}{}
		}
	case ActionReplace:
		d.entries = make(map[contract.Descriptor]struct{}, len(list))
		for _, desc := range list {
			d.entries[desc] = struct{}{}
		}
	case ActionRemove:
		for _, desc := range list {
			delete(d.entries, desc)
		}
	default:
		return fmt.Errorf("unknown service list action %q", action)
	}
	return nil
}

func (d *Directory) Has(desc contract.Descriptor) bool {
	d.mu.RLock()
	_, ok := d.entries[desc]
	d.mu.RUnlock()
	return ok
}

func (d *Directory) List() []contract.Descriptor {
	d.mu.RLock()
	list := make([]contract.Descriptor, 0, len(d.entries))
	for desc := range d.entries {
		list = append(list, desc)
	}
	d.mu.RUnlock()
	sortDescriptors(list)
	return list
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Package selection exchanges selections with the other side. The
// listener receives object references, groups them by reference type and
// hands each group to the type's handler; the provider sends the local
// selection as object references.
package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
)

// Keys of parsed selection values.
const (
	KeyObjID      = "ObjId"
	KeyDBID       = "DBId"
	KeyObjType    = "ObjType"
	KeyFilename   = "filename"
	KeyObjectID   = "objectId"
	KeyObjectType = "objectType"
)

// Change is published on eventbus.TopicChangeSelection.
type Change struct {
	Operation string   `json:"operation"`
	Selected  []string `json:"selected"`
}

// Parsed is one decoded selection entry.
type Parsed map[string]any

// String returns the value of key if it is a string.
func (p Parsed) String(key string) string {
	s, _ := p[key].(string)
	return s
}

type Parser interface {
	Parse(data string) (Parsed, error)
}

type ParserFunc func(data string) (Parsed, error)

func (f ParserFunc) Parse(data string) (Parsed, error) {
	return f(data)
}

// JSONParser reads the entry as a JSON object.
var JSONParser = ParserFunc(func(data string) (Parsed, error) {
	p := Parsed{}
	if data == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("parse selection object: %w", err)
	}
	return p, nil
})

// FilenameParser treats the entry as a bare file name.
var FilenameParser = ParserFunc(func(data string) (Parsed, error) {
	return Parsed{KeyFilename: data}, nil
})

// TypeHandler processes the entries of one reference type.
type TypeHandler interface {
	ProcessObjects(ctx context.Context, objects []string, parser Parser) error
}

type TypeHandlerFunc func(ctx context.Context, objects []string, parser Parser) error

func (f TypeHandlerFunc) ProcessObjects(ctx context.Context, objects []string, parser Parser) error {
	return f(ctx, objects, parser)
}

type entry struct {
	handler TypeHandler
	parser  Parser
}

// Registry maps reference types to their handler and parser.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register sets the handler and parser for typ. A nil value leaves the
// previous one in place.
func (r *Registry) Register(typ string, h TypeHandler, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[typ]
	if h != nil {
		e.handler = h
	}
	if p != nil {
		e.parser = p
	}
	r.entries[typ] = e
}

// Lookup returns the handler and parser of typ; ok is false unless both
// are registered.
func (r *Registry) Lookup(typ string) (TypeHandler, Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entries[typ]
	return e.handler, e.parser, e.handler != nil && e.parser != nil
}

// Listener handles selections sent by the other side.
type Listener struct {
	registry *Registry
	bus      *eventbus.Bus
	log      *zap.Logger
}

func NewListener(registry *Registry, bus *eventbus.Bus, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{registry: registry, bus: bus, log: log}
}

// Apply decodes a selection message and dispatches it. An empty selection
// publishes a replace with nothing selected.
func (l *Listener) Apply(ctx context.Context, payload string) error {
	msg, err := contract.Decode[contract.Selection](payload)
	if err != nil {
		return err
	}

	if len(msg.Selection) == 0 {
		l.bus.Publish(eventbus.TopicChangeSelection, Change{Operation: "replace", Selected: []string{}})
		return nil
	}

	var order []string
	groups := make(map[string][]string)
	for _, ref := range msg.Selection {
		if _, seen := groups[ref.Type]; !seen {
			order = append(order, ref.Type)
		}
		groups[ref.Type] = append(groups[ref.Type], contract.DecodeEmbeddedJSON(ref.Data))
	}

	var errs []error
	for _, typ := range order {
		h, p, ok := l.registry.Lookup(typ)
		if !ok {
			l.log.Debug("no selection handler for type", zap.String("type", typ))
			continue
		}
		if err := h.ProcessObjects(ctx, groups[typ], p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", typ, err))
		}
	}
	return errors.Join(errs...)
}

// methodService is the 2014_10 listener. It answers "OK" or "Fail - <err>"
// and treats events as methods.
type methodService struct {
	l *Listener
}

func (s methodService) HandleIncomingMethod(ctx context.Context, payload string) (string, error) {
	if err := s.l.Apply(ctx, payload); err != nil {
		s.l.log.Error("apply selection", zap.Error(err))
		return "Fail - " + err.Error(), nil
	}
	return "OK", nil
}

func (s methodService) HandleIncomingEvent(ctx context.Context, payload string) error {
	_, err := s.HandleIncomingMethod(ctx, payload)
	return err
}

// eventService is the 2019_05 listener.
type eventService struct {
	l *Listener
}

func (s eventService) HandleIncomingEvent(ctx context.Context, payload string) error {
	return s.l.Apply(ctx, payload)
}

// Install registers the selection listener on peer for both interface
// versions and returns it.
func Install(peer *interop.Peer, registry *Registry) *Listener {
	l := NewListener(registry, peer.Bus(), peer.Logger())
	peer.Registry().Register(contract.NewDescriptor(contract.CSSelectionListener, contract.Version2014_10), methodService{l: l})
	peer.Registry().RegisterEvent(contract.NewDescriptor(contract.CSSelectionListener, contract.Version2019_05), eventService{l: l})
	return l
}

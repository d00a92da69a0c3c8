// Package objref turns model objects into host-safe object references.
//
// Encoders decide how an object is written, factories decide which
// references an object yields. Every accepting encoder/factory pair
// contributes its references, so one object may fan out into several.
package objref

import (
	"errors"
	"slices"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
)

// Reference types.
const (
	TypeDefault       = "DEFAULT"
	TypeUID           = "UID"
	TypeFilename      = "Filename"
	TypeOccurrence    = "Occurrence"
	TypeOccurrence2   = "Occurrence2"
	TypeArchitecture  = "Architecture"
	TypeContextObject = "ContextObject"
)

// ModelObject is the client-side view of a business object.
type ModelObject struct {
	UID  string
	Type string
	// Hierarchy lists the type's ancestors, nearest first.
	Hierarchy []string
}

// IsInstanceOf reports whether the object's type is typeName or derives
// from it.
func (m ModelObject) IsInstanceOf(typeName string) bool {
	return m.Type == typeName || slices.Contains(m.Hierarchy, typeName)
}

// EncodedObject accumulates properties and renders the reference.
type EncodedObject interface {
	SetProperty(name, value string)
	Data() (string, error)
	Type() string
}

type Encoder interface {
	IsObjectSupported(obj ModelObject) bool
	NewEncodedObject() EncodedObject
}

type Factory interface {
	IsObjectSupported(obj ModelObject) bool
	CreateObjectRefs(obj ModelObject, enc Encoder) ([]contract.ObjectRef, error)
}

// ToObjectRef renders e as a {Data, Type} reference.
func ToObjectRef(e EncodedObject) (contract.ObjectRef, error) {
	data, err := e.Data()
	if err != nil {
		return contract.ObjectRef{}, err
	}
	return contract.ObjectRef{Data: contract.EncodeEmbeddedJSON(data), Type: e.Type()}, nil
}

// BasicRef identifies obj by uid and type.
func BasicRef(obj ModelObject) contract.BasicObjectRef {
	return contract.BasicObjectRef{ObjId: obj.UID, ObjType: obj.Type}
}

// Registry holds encoders and factories by reference type, in
// registration order.
type Registry struct {
	mu        sync.RWMutex
	encoders  map[string]Encoder
	factories map[string]Factory
	encOrder  []string
	facOrder  []string
}

func NewRegistry() *Registry {
	return &Registry{
		encoders:  make(map[string]Encoder),
		factories: make(map[string]Factory),
	}
}

// NewDefaultRegistry registers the default and context object pairs.
func NewDefaultRegistry(resolver ContextResolver) *Registry {
	r := NewRegistry()
	r.Register(TypeDefault, DefaultEncoder{}, DefaultFactory{})
	if resolver != nil {
		r.Register(TypeContextObject, ContextEncoder{Resolver: resolver}, ContextFactory{Resolver: resolver})
	}
	return r
}

// Register sets the encoder and factory for typ. Either may be nil. A later
// registration replaces an earlier one and keeps its position.
func (r *Registry) Register(typ string, enc Encoder, fac Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enc != nil {
		if _, ok := r.encoders[typ]; !ok {
			r.encOrder = append(r.encOrder, typ)
		}
		r.encoders[typ] = enc
	}
	if fac != nil {
		if _, ok := r.factories[typ]; !ok {
			r.facOrder = append(r.facOrder, typ)
		}
		r.factories[typ] = fac
	}
}

// CreateObjectRefs encodes obj with the default pair first, then with
// every other accepting encoder crossed with every other accepting
// factory. Pairs that fail are skipped and their errors joined.
func (r *Registry) CreateObjectRefs(obj ModelObject) ([]contract.ObjectRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var refs []contract.ObjectRef
	var errs []error

	collect := func(fac Factory, enc Encoder) {
		out, err := fac.CreateObjectRefs(obj, enc)
		if err != nil {
			errs = append(errs, err)
			return
		}
		refs = append(refs, out...)
	}

	if enc, ok := r.encoders[TypeDefault]; ok && enc.IsObjectSupported(obj) {
		if fac, ok := r.factories[TypeDefault]; ok && fac.IsObjectSupported(obj) {
			collect(fac, enc)
		}
	}

	for _, et := range r.encOrder {
		if et == TypeDefault {
			continue
		}
		enc := r.encoders[et]
		if !enc.IsObjectSupported(obj) {
			continue
		}
		for _, ft := range r.facOrder {
			if ft == TypeDefault {
				continue
			}
			if fac := r.factories[ft]; fac.IsObjectSupported(obj) {
				collect(fac, enc)
			}
		}
	}

	return refs, errors.Join(errs...)
}

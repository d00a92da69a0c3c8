package objref

import (
	"encoding/json"

	"github.com/caffeineduck/browserinterop/contract"
)

// DefaultEncoder writes UID references.
type DefaultEncoder struct{}

func (DefaultEncoder) IsObjectSupported(obj ModelObject) bool {
	return obj.UID != "" && obj.Type != ""
}

func (DefaultEncoder) NewEncodedObject() EncodedObject {
	return &defaultEncoded{}
}

type defaultEncoded struct {
	ref contract.BasicObjectRef
}

func (e *defaultEncoded) SetProperty(name, value string) {
	if value == "" {
		return
	}
	switch name {
	case "objectId":
		e.ref.ObjId = value
	case "databaseId":
		e.ref.DBId = value
	case "objectType":
		e.ref.ObjType = value
	}
}

func (e *defaultEncoded) Data() (string, error) {
	data, err := json.Marshal(e.ref)
	return string(data), err
}

func (e *defaultEncoded) Type() string {
	return TypeUID
}

type DefaultFactory struct{}

func (DefaultFactory) IsObjectSupported(obj ModelObject) bool {
	return obj.UID != "" && obj.Type != ""
}

func (DefaultFactory) CreateObjectRefs(obj ModelObject, enc Encoder) ([]contract.ObjectRef, error) {
	e := enc.NewEncodedObject()
	e.SetProperty("objectId", obj.UID)
	e.SetProperty("objectType", obj.Type)
	ref, err := ToObjectRef(e)
	if err != nil {
		return nil, err
	}
	return []contract.ObjectRef{ref}, nil
}

// ContextResolver finds the context object, such as the product context
// or the selected item revision, that qualifies obj.
type ContextResolver interface {
	ContextFor(obj ModelObject) (ModelObject, bool)
}

type ContextResolverFunc func(obj ModelObject) (ModelObject, bool)

func (f ContextResolverFunc) ContextFor(obj ModelObject) (ModelObject, bool) {
	return f(obj)
}

var contextTypes = []string{"Dataset", "Fnd0TempAppSession", "Fnd0AppSession"}

func contextSupported(r ContextResolver, obj ModelObject) bool {
	if r == nil {
		return false
	}
	supported := false
	for _, t := range contextTypes {
		if obj.IsInstanceOf(t) {
			supported = true
			break
		}
	}
	if !supported {
		return false
	}
	_, ok := r.ContextFor(obj)
	return ok
}

// ContextEncoder writes a target object together with its context.
type ContextEncoder struct {
	Resolver ContextResolver
}

func (c ContextEncoder) IsObjectSupported(obj ModelObject) bool {
	return contextSupported(c.Resolver, obj)
}

func (ContextEncoder) NewEncodedObject() EncodedObject {
	return &contextEncoded{params: make(map[string]string)}
}

type contextEncoded struct {
	params map[string]string
}

func (e *contextEncoded) SetProperty(name, value string) {
	e.params[name] = value
}

func (e *contextEncoded) Data() (string, error) {
	data, err := json.Marshal(struct {
		TargetObj contract.BasicObjectRef `json:"targetObj"`
		Context   contract.BasicObjectRef `json:"context"`
	}{
		TargetObj: contract.BasicObjectRef{ObjId: e.params["targetUid"], ObjType: e.params["targetType"]},
		Context:   contract.BasicObjectRef{ObjId: e.params["contextUid"], ObjType: e.params["contextType"]},
	})
	return string(data), err
}

func (e *contextEncoded) Type() string {
	return TypeContextObject
}

type ContextFactory struct {
	Resolver ContextResolver
}

func (c ContextFactory) IsObjectSupported(obj ModelObject) bool {
	return contextSupported(c.Resolver, obj)
}

func (c ContextFactory) CreateObjectRefs(obj ModelObject, enc Encoder) ([]contract.ObjectRef, error) {
	e := enc.NewEncodedObject()
	e.SetProperty("targetUid", obj.UID)
	e.SetProperty("targetType", obj.Type)
	if ctxObj, ok := c.Resolver.ContextFor(obj); ok {
		e.SetProperty("contextUid", ctxObj.UID)
		e.SetProperty("contextType", ctxObj.Type)
	}
	ref, err := ToObjectRef(e)
	if err != nil {
		return nil, err
	}
	return []contract.ObjectRef{ref}, nil
}

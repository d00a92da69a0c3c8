package selection

import (
	"context"

	"github.com/caffeineduck/browserinterop/appctx"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/objref"
)

// UIDHandler publishes the ObjIds of UID references as the new selection.
// It stays quiet while occurrence management owns the selection.
type UIDHandler struct {
	Bus   *eventbus.Bus
	Store *appctx.Store
}

func (h UIDHandler) ProcessObjects(ctx context.Context, objects []string, parser Parser) error {
	if h.Store != nil && h.Store.Has(appctx.KeyOccurrenceMgmt) {
		return nil
	}

	selected := []string{}
	for _, obj := range objects {
		parsed, err := parser.Parse(obj)
		if err != nil {
			return err
		}
		if uid := parsed.String(KeyObjID); uid != "" {
			selected = append(selected, uid)
		}
	}
	h.Bus.Publish(eventbus.TopicChangeSelection, Change{Operation: "replace", Selected: selected})
	return nil
}

// FilenameHandler records the first file name in the hosted file name
// context.
type FilenameHandler struct {
	Store *appctx.Store
}

func (h FilenameHandler) ProcessObjects(ctx context.Context, objects []string, parser Parser) error {
	if len(objects) == 0 {
		return nil
	}
	parsed, err := parser.Parse(objects[0])
	if err != nil {
		return err
	}
	name := parsed.String(KeyFilename)
	if name == "" {
		return nil
	}

	fileCtx := map[string]any{}
	if cur, ok := h.Store.Get(appctx.KeyHostedFileName); ok {
		if m, ok := cur.(map[string]any); ok {
			for k, v := range m {
				fileCtx[k] = v
			}
		}
	}
	fileCtx[KeyFilename] = name
	return h.Store.Set(appctx.KeyHostedFileName, fileCtx)
}

// NewDefaultRegistry registers the UID and Filename handlers.
func NewDefaultRegistry(bus *eventbus.Bus, store *appctx.Store) *Registry {
	r := NewRegistry()
	r.Register(objref.TypeUID, UIDHandler{Bus: bus, Store: store}, JSONParser)
	r.Register(objref.TypeFilename, FilenameHandler{Store: store}, FilenameParser)
	return r
}

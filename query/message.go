package query

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	modelObjectUIDField  = "uid="
	modelObjectTypeField = "objectType="
)

// ModelObject identifies a business object by uid and type.
type ModelObject struct {
	UID  string
	Type string
}

func (m ModelObject) String() string {
	return modelObjectUIDField + m.UID + modelObjectTypeField + m.Type
}

// ParseModelObject reads the uid=<uid>objectType=<type> wire form.
func ParseModelObject(s string) (ModelObject, bool) {
	if !strings.HasPrefix(s, modelObjectUIDField) {
		return ModelObject{}, false
	}
	idx := strings.Index(s, modelObjectTypeField)
	if idx < len(modelObjectUIDField) {
		return ModelObject{}, false
	}
	return ModelObject{
		UID:  s[len(modelObjectUIDField):idx],
		Type: s[idx+len(modelObjectTypeField):],
	}, true
}

// Data is one set of typed query fields. Values are bool, int64, string or
// ModelObject.
type Data struct {
	keys   []string
	fields map[string]any
}

func NewData() *Data {
	return &Data{fields: make(map[string]any)}
}

func (d *Data) set(key string, v any) *Data {
	if d.fields == nil {
		d.fields = make(map[string]any)
	}
	if _, ok := d.fields[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = v
	return d
}

func (d *Data) SetBool(key string, v bool) *Data               { return d.set(key, v) }
func (d *Data) SetInt(key string, v int64) *Data               { return d.set(key, v) }
func (d *Data) SetString(key string, v string) *Data           { return d.set(key, v) }
func (d *Data) SetModelObject(key string, v ModelObject) *Data { return d.set(key, v) }

// rawValue is a bool or int field whose value did not parse. It reads as
// a string and encodes back under its original prefix.
type rawValue struct {
	prefix string
	text   string
}

// Field returns the raw value for key, or nil.
func (d *Data) Field(key string) any {
	if r, ok := d.fields[key].(rawValue); ok {
		return r.text
	}
	return d.fields[key]
}

func (d *Data) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// Keys returns the field names in insertion order.
func (d *Data) Keys() []string {
	return append([]string(nil), d.keys...)
}

func (d *Data) Bool(key string) (bool, bool) {
	v, ok := d.fields[key].(bool)
	return v, ok
}

func (d *Data) Int(key string) (int64, bool) {
	v, ok := d.fields[key].(int64)
	return v, ok
}

func (d *Data) String(key string) (string, bool) {
	switch v := d.fields[key].(type) {
	case string:
		return v, true
	case rawValue:
		return v.text, true
	}
	return "", false
}

func (d *Data) ModelObject(key string) (ModelObject, bool) {
	v, ok := d.fields[key].(ModelObject)
	return v, ok
}

// Message is one query or query response.
type Message struct {
	QueryID    string
	MessageID  string
	IsResponse bool
	Data       []*Data
}

var messageSeq atomic.Uint64

func newMessageID() string {
	return fmt.Sprintf("MsgId_%d_%d", time.Now().UnixMilli(), messageSeq.Add(1))
}

// NewMessage creates a query with a fresh message id.
func NewMessage(queryID string, data ...*Data) *Message {
	return &Message{QueryID: queryID, MessageID: newMessageID(), Data: data}
}

// Response creates the response to m, carrying the same ids.
func (m *Message) Response(data ...*Data) *Message {
	return &Message{QueryID: m.QueryID, MessageID: m.MessageID, IsResponse: true, Data: data}
}

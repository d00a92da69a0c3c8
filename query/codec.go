package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caffeineduck/browserinterop/contract"
)

const (
	prefixBool        = "bool:"
	prefixInt         = "int:"
	prefixString      = "string:"
	prefixModelObject = "modelobject:"
)

// EncodeNative converts messages to the native wire shape. Nil data
// entries are skipped.
func EncodeNative(version string, msgs ...*Message) (contract.QueryMessage, error) {
	native := contract.QueryMessage{Queries: make([]contract.NativeQuery, 0, len(msgs)), Version: version}
	for _, m := range msgs {
		q := contract.NativeQuery{
			QueryID:     m.QueryID,
			MessageID:   m.MessageID,
			IsResponse:  m.IsResponse,
			DataObjects: make([]contract.NativeDataObject, 0, len(m.Data)),
		}
		for _, d := range m.Data {
			if d == nil {
				continue
			}
			obj, err := encodeData(d)
			if err != nil {
				return contract.QueryMessage{}, fmt.Errorf("query %s: %w", m.QueryID, err)
			}
			q.DataObjects = append(q.DataObjects, obj)
		}
		native.Queries = append(native.Queries, q)
	}
	return native, nil
}

func encodeData(d *Data) (contract.NativeDataObject, error) {
	obj := contract.NativeDataObject{DataFields: make([]contract.KeyValue, 0, len(d.keys))}
	for _, key := range d.keys {
		var kv contract.KeyValue
		switch v := d.fields[key].(type) {
		case bool:
			kv = contract.KeyValue{Key: prefixBool + key, Value: strconv.FormatBool(v)}
		case int64:
			kv = contract.KeyValue{Key: prefixInt + key, Value: strconv.FormatInt(v, 10)}
		case string:
			kv = contract.KeyValue{Key: prefixString + key, Value: v}
		case ModelObject:
			kv = contract.KeyValue{Key: prefixModelObject + key, Value: v.String()}
		case rawValue:
			kv = contract.KeyValue{Key: v.prefix + key, Value: v.text}
		default:
			return contract.NativeDataObject{}, fmt.Errorf("field %q: unsupported type %T", key, v)
		}
		obj.DataFields = append(obj.DataFields, kv)
	}
	return obj, nil
}

// DecodeNative converts the native wire shape to messages. Fields with an
// unknown type prefix are dropped. Bool and int values that fail to parse
// read as strings but keep their prefix when encoded again.
func DecodeNative(native contract.QueryMessage) []*Message {
	msgs := make([]*Message, 0, len(native.Queries))
	for _, q := range native.Queries {
		m := &Message{QueryID: q.QueryID, MessageID: q.MessageID, IsResponse: q.IsResponse}
		for _, obj := range q.DataObjects {
			m.Data = append(m.Data, decodeData(obj))
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func decodeData(obj contract.NativeDataObject) *Data {
	d := NewData()
	for _, kv := range obj.DataFields {
		switch {
		case strings.HasPrefix(kv.Key, prefixBool):
			key := kv.Key[len(prefixBool):]
			if b, err := strconv.ParseBool(kv.Value); err == nil {
				d.set(key, b)
			} else {
				d.set(key, rawValue{prefix: prefixBool, text: kv.Value})
			}
		case strings.HasPrefix(kv.Key, prefixInt):
			key := kv.Key[len(prefixInt):]
			if n, err := strconv.ParseInt(kv.Value, 10, 64); err == nil {
				d.set(key, n)
			} else {
				d.set(key, rawValue{prefix: prefixInt, text: kv.Value})
			}
		case strings.HasPrefix(kv.Key, prefixString):
			d.set(kv.Key[len(prefixString):], kv.Value)
		case strings.HasPrefix(kv.Key, prefixModelObject):
			if mo, ok := ParseModelObject(kv.Value); ok {
				d.set(kv.Key[len(prefixModelObject):], mo)
			}
		}
	}
	return d
}

// Marshal renders messages as native JSON text.
func Marshal(version string, msgs ...*Message) (string, error) {
	native, err := EncodeNative(version, msgs...)
	if err != nil {
		return "", err
	}
	return contract.Encode(native)
}

// Unmarshal parses native JSON text.
func Unmarshal(data string) ([]*Message, error) {
	native, err := contract.Decode[contract.QueryMessage](data)
	if err != nil {
		return nil, err
	}
	return DecodeNative(native), nil
}

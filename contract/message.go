package contract

import (
	"encoding/json"
	"fmt"
)

// Kind tags one of the closed set of message variants.
type Kind int

const (
	KindLoggerEntry Kind = iota + 1
	KindSelection
	KindOpenLocation
	KindQuery
	KindStartupNotification
)

func (k Kind) String() string {
	switch k {
	case KindLoggerEntry:
		return "LoggerEntry"
	case KindSelection:
		return "Selection"
	case KindOpenLocation:
		return "OpenLocation"
	case KindQuery:
		return "Query"
	case KindStartupNotification:
		return "StartupNotification"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is implemented by every wire message variant.
type Message interface {
	Kind() Kind
}

// LoggerEntry is forwarded to the host logger service.
type LoggerEntry struct {
	Level         string `json:"Level"`
	FormatMessage string `json:"FormatMessage"`
	Version       string `json:"Version,omitempty"`
}

func (LoggerEntry) Kind() Kind { return KindLoggerEntry }

// Selection carries object references in either direction.
type Selection struct {
	Selection    []ObjectRef `json:"Selection"`
	SingleSelect bool        `json:"SingleSelect"`
	Version      string      `json:"Version,omitempty"`
}

func (Selection) Kind() Kind { return KindSelection }

// OpenLocation asks the client to navigate to a location.
type OpenLocation struct {
	Location      string           `json:"location"`
	OpenComponent []BasicObjectRef `json:"OpenComponent"`
	Version       string           `json:"Version,omitempty"`
}

func (OpenLocation) Kind() Kind { return KindOpenLocation }

// QueryMessage is the native InteropQuery wire shape.
type QueryMessage struct {
	Queries []NativeQuery `json:"Queries"`
	Version string        `json:"Version,omitempty"`
}

func (QueryMessage) Kind() Kind { return KindQuery }

type NativeQuery struct {
	QueryID     string             `json:"QueryId"`
	MessageID   string             `json:"MessageId,omitempty"`
	IsResponse  bool               `json:"IsResponse"`
	DataObjects []NativeDataObject `json:"DataObjects"`
}

type NativeDataObject struct {
	DataFields []KeyValue `json:"DataFields"`
}

type KeyValue struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// StartupNotification tells the host the client finished starting.
type StartupNotification struct {
	ClientID string `json:"ClientId,omitempty"`
	Status   string `json:"Status"`
	Version  string `json:"Version,omitempty"`
}

func (StartupNotification) Kind() Kind { return KindStartupNotification }

// ObjectRef is the host-safe {Data, Type} encoding of a model object. Data
// holds base64 embedded JSON.
type ObjectRef struct {
	Data string `json:"Data"`
	Type string `json:"Type"`
}

// BasicObjectRef identifies a model object by id and type.
type BasicObjectRef struct {
	DBId    string `json:"DBId"`
	ObjId   string `json:"ObjId"`
	ObjType string `json:"ObjType"`
}

// Encode serializes a message to JSON text.
func Encode(m Message) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return string(data), nil
}

// Decode hydrates a message from JSON text. Malformed input leaves the
// returned value empty or partially filled; the error is informational.
// An empty string decodes to the zero value without error.
func Decode[T Message](data string) (T, error) {
	var m T
	if data == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return m, fmt.Errorf("decode %s: %w", m.Kind(), err)
	}
	return m, nil
}

// DecodeKind decodes data into the variant selected by kind.
func DecodeKind(kind Kind, data string) (Message, error) {
	switch kind {
	case KindLoggerEntry:
		return Decode[LoggerEntry](data)
	case KindSelection:
		return Decode[Selection](data)
	case KindOpenLocation:
		return Decode[OpenLocation](data)
	case KindQuery:
		return Decode[QueryMessage](data)
	case KindStartupNotification:
		return Decode[StartupNotification](data)
	default:
		return nil, fmt.Errorf("decode: unknown message kind %s", kind)
	}
}

package contract

import (
	"encoding/json"
	"fmt"
)

// Descriptor identifies a callable service by fully qualified name and
// interface version.
type Descriptor struct {
	FQN        string `json:"FQN"`
	SvcVersion string `json:"SvcVersion"`
}

func NewDescriptor(fqn, version string) Descriptor {
	return Descriptor{FQN: fqn, SvcVersion: version}
}

func (d Descriptor) String() string {
	return d.FQN + d.SvcVersion
}

// JSON renders the descriptor the way it travels in the service field of a
// bio call.
func (d Descriptor) JSON() string {
	data, _ := json.Marshal(d)
	return string(data)
}

func (d Descriptor) IsZero() bool {
	return d.FQN == "" && d.SvcVersion == ""
}

// ParseDescriptor decodes the wire form of a descriptor.
func ParseDescriptor(data string) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return Descriptor{}, fmt.Errorf("parse descriptor: %w", err)
	}
	if d.FQN == "" {
		return Descriptor{}, fmt.Errorf("parse descriptor: missing FQN in %q", data)
	}
	return d, nil
}

// ParseDescriptorList decodes a JSON array of descriptors.
func ParseDescriptorList(data string) ([]Descriptor, error) {
	if data == "" {
		return nil, nil
	}
	var list []Descriptor
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("parse descriptor list: %w", err)
	}
	return list, nil
}

// FormatDescriptorList renders descriptors as a JSON array. A nil list is
// rendered as [].
func FormatDescriptorList(list []Descriptor) string {
	if list == nil {
		list = []Descriptor{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

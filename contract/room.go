package contract

import "encoding/json"

// Relay room events.
const (
	EventJoinRoom             = "join-room"
	EventClientRequest        = "bio-client-request"
	EventHostRequest          = "bio-host-request"
	EventClientResponse       = "bio-client-response"
	EventHostResponse         = "bio-host-response"
	EventAllHostsDisconnected = "all-hosts-disconnected"
	EventHostReconnected      = "host-reconnected"
)

// Member types in a relay room.
const (
	MemberClient = "client"
	MemberHost   = "host"
)

// RoomEnvelope is one websocket message exchanged with the relay.
type RoomEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRoom struct {
	RoomID     string `json:"roomId"`
	MemberID   string `json:"memberId"`
	MemberType string `json:"memberType"`
}

// RoomMessage carries a bio call or its result through a relay room.
type RoomMessage struct {
	Source      string `json:"source"`
	RoomID      string `json:"roomId"`
	MessageID   string `json:"messageId,omitempty"`
	BioFunction string `json:"bioFunction"`
	Service     string `json:"service,omitempty"`
	Payload     string `json:"payload,omitempty"`
	Result      string `json:"result,omitempty"`
	CallerID    string `json:"callerId,omitempty"`
	TimeSent    string `json:"timeSent,omitempty"`
	Oneway      bool   `json:"oneway,omitempty"`
}

// NewEnvelope wraps v as the data of event.
func NewEnvelope(event string, v any) (RoomEnvelope, error) {
	if v == nil {
		return RoomEnvelope{Event: event}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return RoomEnvelope{}, err
	}
	return RoomEnvelope{Event: event, Data: data}, nil
}

// RequestEvent returns the event a member of memberType sends requests on.
func RequestEvent(memberType string) string {
	if memberType == MemberHost {
		return EventHostRequest
	}
	return EventClientRequest
}

// ResponseEvent returns the event a member of memberType answers on.
func ResponseEvent(memberType string) string {
	if memberType == MemberHost {
		return EventHostResponse
	}
	return EventClientResponse
}

// Package transport carries bio calls between a client and a host peer.
//
// Three transports are provided: Stream speaks newline-delimited JSON
// frames over any reader/writer pair, Remote joins a relay room over a
// websocket and Loopback connects two peers in the same process. All of
// them implement interop.Transport and feed inbound calls to an
// interop.Dispatcher.
package transport

import (
	"errors"

	"github.com/caffeineduck/browserinterop/contract"
)

var (
	ErrClosed       = errors.New("transport closed")
	ErrNotConnected = errors.New("transport not connected")
)

// Frame types.
const (
	FrameNotify   = "notify"
	FrameRequest  = "request"
	FrameResponse = "response"
)

// Frame is one unit on a Stream.
type Frame struct {
	ID     string         `json:"id,omitempty"`
	Type   string         `json:"type"`
	Call   *contract.Call `json:"call,omitempty"`
	Result string         `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

package interop

import (
	"context"
	"fmt"

	"github.com/caffeineduck/browserinterop/contract"
	"go.uber.org/zap"
)

// Proxy invokes one service on the other side.
type Proxy struct {
	peer *Peer
	desc contract.Descriptor
}

// Reply is the outcome of an asynchronous method call.
type Reply struct {
	Payload string
	Err     error
}

func (p *Peer) Proxy(desc contract.Descriptor) *Proxy {
	return &Proxy{peer: p, desc: desc}
}

func (x *Proxy) Descriptor() contract.Descriptor {
	return x.desc
}

// Available reports whether the other side advertised this service.
func (x *Proxy) Available() bool {
	return x.peer.Available(x.desc)
}

func (x *Proxy) unavailable(op string) error {
	if x.peer.trace.FailedCalls {
		x.peer.log.Warn("remote service not available",
			zap.String("op", op),
			zap.Stringer("service", x.desc))
	}
	return fmt.Errorf("%s: %w: %s", op, ErrServiceUnavailable, x.desc)
}

func (x *Proxy) InvokeEvent(ctx context.Context, payload string) error {
	if !x.Available() {
		return x.unavailable("invoke event")
	}
	return x.peer.CallEvent(ctx, x.desc, payload)
}

func (x *Proxy) InvokeMethod(ctx context.Context, payload string) (string, error) {
	if !x.Available() {
		return "", x.unavailable("invoke method")
	}
	return x.peer.CallMethod(ctx, x.desc, payload)
}

// InvokeMethodAsync runs InvokeMethod in its own goroutine. The channel
// receives exactly one Reply.
func (x *Proxy) InvokeMethodAsync(ctx context.Context, payload string) <-chan Reply {
	ch := make(chan Reply, 1)
	if !x.Available() {
		ch <- Reply{Err: x.unavailable("invoke method async")}
		return ch
	}
	go func() {
		resp, err := x.peer.CallMethod(ctx, x.desc, payload)
		ch <- Reply{Payload: resp, Err: err}
	}()
	return ch
}

// Fire encodes msg and sends it as an event.
func (x *Proxy) Fire(ctx context.Context, msg contract.Message) error {
	payload, err := contract.Encode(msg)
	if err != nil {
		return err
	}
	return x.InvokeEvent(ctx, payload)
}

// Call encodes msg, sends it as a method call and returns the raw reply.
func (x *Proxy) Call(ctx context.Context, msg contract.Message) (string, error) {
	payload, err := contract.Encode(msg)
	if err != nil {
		return "", err
	}
	return x.InvokeMethod(ctx, payload)
}

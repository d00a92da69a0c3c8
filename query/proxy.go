package query

import (
	"context"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
)

// Proxy sends queries to the InteropQuery service of the other side.
type Proxy struct {
	target *interop.Proxy
	log    *zap.Logger
}

// NewProxy returns a proxy for the other side's query service at version.
func NewProxy(peer *interop.Peer, version string) *Proxy {
	_, remote := fqns(peer.Role())
	return newProxy(peer, contract.NewDescriptor(remote, version))
}

func newProxy(peer *interop.Peer, desc contract.Descriptor) *Proxy {
	return &Proxy{target: peer.Proxy(desc), log: peer.Logger()}
}

func (p *Proxy) Available() bool {
	return p.target.Available()
}

func (p *Proxy) Descriptor() contract.Descriptor {
	return p.target.Descriptor()
}

// Fire sends msgs as an event.
func (p *Proxy) Fire(ctx context.Context, msgs ...*Message) error {
	payload, err := Marshal(contract.Version2015_10, msgs...)
	if err != nil {
		return err
	}
	return p.target.InvokeEvent(ctx, payload)
}

// Query sends msgs as a method call and returns the decoded responses. Any
// failure is logged and reported as ErrQueryHandler.
func (p *Proxy) Query(ctx context.Context, msgs ...*Message) ([]*Message, error) {
	payload, err := Marshal(p.Descriptor().SvcVersion, msgs...)
	if err != nil {
		p.log.Error("encode query", zap.Error(err))
		return nil, ErrQueryHandler
	}
	reply, err := p.target.InvokeMethod(ctx, payload)
	if err != nil {
		p.log.Error("query call failed", zap.Stringer("service", p.Descriptor()), zap.Error(err))
		return nil, ErrQueryHandler
	}
	if reply == "" {
		return nil, nil
	}
	responses, err := Unmarshal(reply)
	if err != nil {
		p.log.Error("decode query reply", zap.Error(err))
		return nil, ErrQueryHandler
	}
	return responses, nil
}

// Client sends queries over the event path and awaits their responses.
type Client struct {
	proxy      *Proxy
	correlator *Correlator
}

func NewClient(proxy *Proxy, correlator *Correlator) *Client {
	return &Client{proxy: proxy, correlator: correlator}
}

// Send fires msg and returns its pending entry.
func (c *Client) Send(ctx context.Context, msg *Message) (*Pending, error) {
	return c.correlator.Send(ctx, c.proxy, msg)
}

package interop

import (
	"github.com/caffeineduck/browserinterop/appctx"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/service"
	"go.uber.org/zap"
)

// Option configures a Peer.
type Option func(*Peer)

func WithRole(r Role) Option {
	return func(p *Peer) {
		p.role = r
	}
}

// WithRegistry shares a registry between peers or with the caller.
func WithRegistry(r *service.Registry) Option {
	return func(p *Peer) {
		p.registry = r
	}
}

func WithDirectory(d *service.Directory) Option {
	return func(p *Peer) {
		p.remote = d
	}
}

func WithBus(b *eventbus.Bus) Option {
	return func(p *Peer) {
		p.bus = b
	}
}

func WithAppContext(s *appctx.Store) Option {
	return func(p *Peer) {
		p.store = s
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Peer) {
		p.log = l
	}
}

// WithTrace enables call activity logging.
func WithTrace(t Trace) Option {
	return func(p *Peer) {
		if t.Filtered == nil {
			t.Filtered = DefaultFilteredFQNs()
		}
		p.trace = t
	}
}

// WithVersion overrides the interop version reported to pings.
func WithVersion(v string) Option {
	return func(p *Peer) {
		p.version = v
	}
}

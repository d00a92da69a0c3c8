package transport

import (
	"context"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
)

// Loopback delivers calls to an in-process dispatcher.
type Loopback struct {
	mu     sync.RWMutex
	target interop.Dispatcher
	closed bool
}

func NewLoopback(target interop.Dispatcher) *Loopback {
	return &Loopback{target: target}
}

// Attach sets the dispatcher receiving calls.
func (l *Loopback) Attach(target interop.Dispatcher) {
	l.mu.Lock()
	l.target = target
	l.mu.Unlock()
}

func (l *Loopback) dispatcher() (interop.Dispatcher, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.target == nil {
		return nil, ErrNotConnected
	}
	return l.target, nil
}

func (l *Loopback) Notify(ctx context.Context, call contract.Call) error {
	d, err := l.dispatcher()
	if err != nil {
		return err
	}
	d.Dispatch(ctx, call)
	return nil
}

func (l *Loopback) Request(ctx context.Context, call contract.Call) (string, error) {
	d, err := l.dispatcher()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.Dispatch(ctx, call), nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Pair builds a client and a host peer wired to each other in process.
func Pair(clientOpts, hostOpts []interop.Option) (client, host *interop.Peer) {
	toHost, toClient := NewLoopback(nil), NewLoopback(nil)
	client = interop.New(toHost, append([]interop.Option{interop.WithRole(interop.RoleClient)}, clientOpts...)...)
	host = interop.New(toClient, append([]interop.Option{interop.WithRole(interop.RoleHost)}, hostOpts...)...)
	toHost.Attach(host)
	toClient.Attach(client)
	return client, host
}

// Package hostlog forwards log output to the host's logger-forward
// service.
package hostlog

import (
	"context"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
)

// Entry is the payload published on eventbus.TopicLog.
type Entry struct {
	Level  string
	Output string
}

var loggerForward = contract.NewDescriptor(contract.HSLoggerForward, contract.Version2014_02)

type Forwarder struct {
	proxy *interop.Proxy
	log   *zap.Logger
}

func NewForwarder(peer *interop.Peer) *Forwarder {
	return &Forwarder{
		proxy: peer.Proxy(loggerForward),
		log:   peer.Logger(),
	}
}

// Available reports whether the host offers the logger-forward service.
func (f *Forwarder) Available() bool {
	return f.proxy.Available()
}

// Forward sends one log line to the host.
func (f *Forwarder) Forward(ctx context.Context, level, text string) error {
	return f.proxy.Fire(ctx, contract.LoggerEntry{Level: level, FormatMessage: text})
}

// Attach forwards every entry published on the log topic. It does nothing
// and returns ok=false when the host lacks the service.
func (f *Forwarder) Attach(bus *eventbus.Bus) (unsubscribe func(), ok bool) {
	if !f.Available() {
		return func() {}, false
	}
	return bus.Subscribe(eventbus.TopicLog, func(payload any) {
		e, ok := payload.(Entry)
		if !ok {
			return
		}
		if err := f.Forward(context.Background(), e.Level, e.Output); err != nil {
			f.log.Debug("log forward failed", zap.Error(err))
		}
	}), true
}

package hostlog

import (
	"context"
	"strings"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is the host side of the logger-forward service. Forwarded lines are
// written to a zap logger at their reported level.
type Sink struct {
	log *zap.Logger
}

func NewSink(log *zap.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) HandleIncomingEvent(ctx context.Context, payload string) error {
	entry, err := contract.Decode[contract.LoggerEntry](payload)
	if err != nil {
		return err
	}
	level, err := zapcore.ParseLevel(strings.ToLower(entry.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	if ce := s.log.Check(level, entry.FormatMessage); ce != nil {
		ce.Write(zap.String("source", "client"))
	}
	return nil
}

// InstallSink registers s as the logger-forward service on a host peer.
func InstallSink(peer *interop.Peer, log *zap.Logger) *Sink {
	s := NewSink(log)
	peer.Registry().RegisterEvent(loggerForward, s)
	return s
}

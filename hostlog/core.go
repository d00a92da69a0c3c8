package hostlog

import (
	"context"
	"strings"

	"go.uber.org/zap/zapcore"
)

type core struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	fwd *Forwarder
}

// NewCore returns a zapcore.Core that sends each entry to the host. Entries
// are dropped while the host does not offer the logger-forward service.
// Tee it with the regular core:
//
//	logger := zap.New(zapcore.NewTee(base, hostlog.NewCore(fwd, enc, zap.InfoLevel)))
func NewCore(fwd *Forwarder, enc zapcore.Encoder, enab zapcore.LevelEnabler) zapcore.Core {
	return &core{LevelEnabler: enab, enc: enc, fwd: fwd}
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := &core{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), fwd: c.fwd}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if !c.fwd.Available() {
		return nil
	}
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	text := strings.TrimRight(buf.String(), "\n")
	buf.Free()
	return c.fwd.Forward(context.Background(), ent.Level.CapitalString(), text)
}

func (c *core) Sync() error {
	return nil
}

// Package debug routes framework logging to the host console and exposes
// dispatch and perform metrics.
package debug

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justyntemme/gomedian/pkg/max"
)

var (
	nop    = zap.NewNop()
	logger atomic.Pointer[zap.Logger]
)

// Logger returns the package logger. It discards everything until SetLogger
// installs one.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// SetLogger installs the package logger. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// NewConsoleLogger returns a logger that prints to the host console.
func NewConsoleLogger(con max.Console, level zapcore.LevelEnabler) *zap.Logger {
	return zap.New(NewConsoleCore(con, level))
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(s string) (zapcore.Level, error) {
	return zapcore.ParseLevel(s)
}

type consoleCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	con max.Console
}

// NewConsoleCore returns a zapcore.Core writing to the host console. Entries
// at error level and above go to the error stream.
func NewConsoleCore(con max.Console, level zapcore.LevelEnabler) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	cfg.StacktraceKey = "stack"
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return &consoleCore{
		LevelEnabler: level,
		enc:          zapcore.NewConsoleEncoder(cfg),
		con:          con,
	}
}

func (c *consoleCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &consoleCore{LevelEnabler: c.LevelEnabler, enc: enc, con: c.con}
}

func (c *consoleCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *consoleCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimRight(buf.String(), "\n")
	buf.Free()
	if ent.Level >= zapcore.ErrorLevel {
		c.con.Error(msg)
	} else {
		c.con.Post(msg)
	}
	return nil
}

func (c *consoleCore) Sync() error { return nil }

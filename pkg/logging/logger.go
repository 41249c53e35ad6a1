// Package logging defines the small leveled logger used across the service
// and adapters for logrus and zap.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported log drivers.
const (
	DriverLogrus = "logrus"
	DriverZap    = "zap"
	DriverNop    = "nop"
)

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Components treat a nil Logger as disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}

// NewLogrus builds a JSON logrus logger writing to out.
func NewLogrus(level string, out io.Writer) (LogrusLogger, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return LogrusLogger{}, fmt.Errorf("logging: %w", err)
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return LogrusLogger{E: logrus.NewEntry(l)}, nil
}

type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f Fields) { z.L.Error(msg, zf(f)...) }

func zf(f Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// NewZap builds a production zap logger at the given level.
func NewZap(level string) (ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return ZapLogger{}, fmt.Errorf("logging: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return ZapLogger{}, fmt.Errorf("logging: %w", err)
	}
	return ZapLogger{L: l}, nil
}

// New returns a Logger for the named driver. An empty driver means logrus.
func New(driver, level string) (Logger, error) {
	if level == "" {
		level = "info"
	}
	switch strings.ToLower(driver) {
	case "", DriverLogrus:
		return NewLogrus(level, os.Stdout)
	case DriverZap:
		return NewZap(level)
	case DriverNop:
		return NopLogger{}, nil
	default:
		return nil, fmt.Errorf("logging: unknown driver %q", driver)
	}
}

// Package logger wraps zerolog with the structured, leveled logging calls
// used throughout storage, btree and kvstore, following the shape of
// NayanaChandrika99-DocReasoner's internal/logger but trimmed to this
// store's own concerns (page/bucket/tree events instead of gRPC calls).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the logger's level, output stream and formatting.
type Config struct {
	Level  string // "debug", "info", "warn", "error", or "" (info)
	Pretty bool   // human-readable console output instead of JSON
	Output io.Writer
}

// Logger is a thin wrapper around zerolog.Logger offering
// key-value-pair-style calls so the rest of the codebase doesn't import
// zerolog directly.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	z := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, used when a caller
// doesn't supply one.
func Nop() *Logger {
	return &Logger{z: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

func (l *Logger) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.event(l.z.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.event(l.z.Info(), msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.event(l.z.Warn(), msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.event(l.z.Error(), msg, kv) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.event(l.z.Fatal(), msg, kv) }

// WithFields returns a child Logger with the given fields attached to
// every subsequent event.
func (l *Logger) WithFields(kv ...interface{}) *Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, kv[i+1])
	}
	return &Logger{z: ctx.Logger()}
}

// Package log is a thin structured-logging wrapper around zerolog, giving
// every package in the module the same call-site shape: WithField(s),
// WithError, then a terminal Debug/Info/Warn/Error.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	logger  = zerolog.New(os.Stderr).With().Timestamp().Logger()
	initted bool
)

// Init configures the package-wide logger. Safe to call once at process
// startup; subsequent calls replace the active logger.
func Init(w io.Writer, level string, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	initted = true
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Builder accumulates fields before a terminal log call.
type Builder struct {
	ctx zerolog.Context
}

// WithField starts a builder with a single field.
func WithField(key string, value interface{}) *Builder {
	return &Builder{ctx: current().With().Interface(key, value)}
}

// WithFields starts a builder with several fields at once.
func WithFields(fields map[string]interface{}) *Builder {
	ctx := current().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Builder{ctx: ctx}
}

// WithError starts a builder carrying err, following zerolog's err field
// convention.
func WithError(err error) *Builder {
	return &Builder{ctx: current().With().Err(err)}
}

// WithField appends another field to an in-progress builder.
func (b *Builder) WithField(key string, value interface{}) *Builder {
	b.ctx = b.ctx.Interface(key, value)
	return b
}

// WithFields appends several fields to an in-progress builder.
func (b *Builder) WithFields(fields map[string]interface{}) *Builder {
	for k, v := range fields {
		b.ctx = b.ctx.Interface(k, v)
	}
	return b
}

// WithError attaches err to an in-progress builder.
func (b *Builder) WithError(err error) *Builder {
	b.ctx = b.ctx.Err(err)
	return b
}

func (b *Builder) Debug(msg string) { b.ctx.Logger().Debug().Msg(msg) }
func (b *Builder) Info(msg string)  { b.ctx.Logger().Info().Msg(msg) }
func (b *Builder) Warn(msg string)  { b.ctx.Logger().Warn().Msg(msg) }
func (b *Builder) Error(msg string) { b.ctx.Logger().Error().Msg(msg) }

// Debug logs directly with no fields.
func Debug(msg string) { current().Debug().Msg(msg) }

// Info logs directly with no fields.
func Info(msg string) { current().Info().Msg(msg) }

// Warn logs directly with no fields.
func Warn(msg string) { current().Warn().Msg(msg) }

// Error logs directly with no fields.
func Error(msg string) { current().Error().Msg(msg) }

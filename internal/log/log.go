// Package log provides the global zerolog logger shared by the strategies,
// the broker and the command line tool.
package log

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	SetOutput(os.Stdout)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// SetOutput replaces the destination of the global logger.
func SetOutput(w io.Writer) {
	l := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &l
}

// SetLevel sets the minimum global log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel converts a textual level such as "debug" or "warn" into a
// zerolog level. Unknown or empty values map to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// Ctx returns the logger associated with ctx, falling back to the global
// logger when none is attached.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Logger()
	}
	return zerolog.Ctx(ctx)
}

// WithContext returns a context carrying a child of the current logger with
// the fields added by update.
func WithContext(ctx context.Context, update func(c zerolog.Context) zerolog.Context) context.Context {
	l := update(Ctx(ctx).With()).Logger()
	return l.WithContext(ctx)
}

// Debug starts a new message with debug level.
//
// You must call Msg on the returned event in order to send the event.
func Debug(ctx context.Context) *zerolog.Event {
	return Ctx(ctx).Debug()
}

// Info starts a new message with info level.
//
// You must call Msg on the returned event in order to send the event.
func Info(ctx context.Context) *zerolog.Event {
	return Ctx(ctx).Info()
}

// Warn starts a new message with warn level.
//
// You must call Msg on the returned event in order to send the event.
func Warn(ctx context.Context) *zerolog.Event {
	return Ctx(ctx).Warn()
}

// Error starts a new message with error level.
//
// You must call Msg on the returned event in order to send the event.
func Error(ctx context.Context) *zerolog.Event {
	return Ctx(ctx).Error()
}

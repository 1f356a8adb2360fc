// Package logger builds the slog loggers used across landscape. Services log
// text or JSON; interactive commands log through charmbracelet/log.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level     slog.Level
	format    Format
	source    bool
	component string
	out       []io.Writer
}

// New creates a *slog.Logger configured by opts. Without options it writes
// text records at info level to stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, format: FormatText}
	for _, opt := range opts {
		opt(c)
	}

	l := slog.New(c.handler(c.writer()))
	if c.component != "" {
		l = l.With("component", c.component)
	}
	return l
}

func (c *config) writer() io.Writer {
	switch len(c.out) {
	case 0:
		return os.Stdout
	case 1:
		return c.out[0]
	default:
		return io.MultiWriter(c.out...)
	}
}

func (c *config) handler(w io.Writer) slog.Handler {
	switch c.format {
	case FormatPretty:
		level := charmlog.InfoLevel
		switch {
		case c.level <= slog.LevelDebug:
			level = charmlog.DebugLevel
		case c.level >= slog.LevelError:
			level = charmlog.ErrorLevel
		case c.level >= slog.LevelWarn:
			level = charmlog.WarnLevel
		}
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           level,
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})

	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})

	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

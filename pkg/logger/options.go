package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the record encoding.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// ParseFormat accepts text, json or pretty, case-insensitively. An empty
// string is text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatPretty:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want text, json or pretty)", s)
	}
}

// Option configures a logger created with New.
type Option func(*config)

// WithDebug lowers the level to debug when true.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithComponent tags every record with a "component" attribute.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// WithWriter replaces the output. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.out = []io.Writer{w}
	}
}

// WithWriters writes every record to each of w.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithSource adds the calling file and line.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// Package logging builds the zerolog loggers used across the command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLevel is used when no level is configured
const DefaultLevel = zerolog.InfoLevel

// Options configures New
type Options struct {
	// Level is a zerolog level name; empty means DefaultLevel
	Level string
	// Out defaults to stderr
	Out io.Writer
	// JSON writes raw JSON events instead of the human readable console format
	JSON bool
}

// ParseLevel parses a level name. An empty name yields DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return DefaultLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return DefaultLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// New creates a logger. An invalid level falls back to DefaultLevel.
func New(opts Options) zerolog.Logger {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		lvl = DefaultLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Component derives a child logger tagged with a component name
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Package logger builds the zerolog loggers used by tingo.
package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/tingo/internal/config"
)

// New returns a logger writing to w as configured.
func New(cfg config.LoggingConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}

	var out io.Writer
	switch cfg.Format {
	case "json":
		out = w
	case "console", "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: expected console or json", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Verbose lowers the level of log to debug, or to trace when more is set.
func Verbose(log zerolog.Logger, more bool) zerolog.Logger {
	if more {
		return log.Level(zerolog.TraceLevel)
	}
	return log.Level(zerolog.DebugLevel)
}

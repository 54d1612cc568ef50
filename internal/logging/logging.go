// Package logging wires up the process-wide zerolog logger and the
// credential-redaction middleware applied before any error or command
// output reaches a log sink.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. pretty enables a human
// console writer (for local development); otherwise logs are newline
// JSON, suitable for aggregation.
func Setup(levelName string, pretty bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// For overrides the global logger with a component field, matching the
// teacher's "one logger per package" convention.
func For(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

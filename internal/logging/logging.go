package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/redact"
)

type Config struct {
	Env       string
	Level     string
	Redaction bool
	Output    io.Writer
}

// New builds the process logger. dev gets a console writer, everything else
// gets JSON lines.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	redactionOff.Store(!cfg.Redaction)

	if cfg.Env == "dev" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

var redactionOff atomic.Bool

// Safe returns a copy of fields with PHI removed, unless log redaction was
// turned off in New.
func Safe(fields map[string]any) map[string]any {
	if redactionOff.Load() {
		return fields
	}
	return redact.Map(fields, redact.Options{Enabled: true, PreserveStructure: true})
}

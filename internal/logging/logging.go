// Package logging builds the zerolog logger shared by the binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level and output format.
type Config struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
	Enabled bool   `yaml:"enabled"`
}

// New returns a logger writing to stdout.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w. JSON is the default format;
// "console" renders human-readable lines for local runs.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := w
	if !cfg.Enabled {
		out = io.Discard
	} else if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds a zerolog logger. format "json" writes JSON lines;
// anything else uses the human-readable console writer.
func NewLogger(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// SetupGlobal installs a logger as the package-level zerolog logger and
// returns it.
func SetupGlobal(level, format string) zerolog.Logger {
	logger := NewLogger(level, format, os.Stderr)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

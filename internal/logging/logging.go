// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Production writes JSON to stdout; other environments
// use the human-readable console writer. Unknown levels fall back to info.
func Setup(level, env string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if env != "production" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return configure(w, level)
}

func configure(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "ridehail-auth").Logger()
	log.Logger = logger
	zerolog.SetGlobalLevel(lvl)
	return logger
}

// MaskTarget hides all but the last four characters of a phone number or email for log output.
func MaskTarget(target string) string {
	if len(target) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(target)-4) + target[len(target)-4:]
}

// internal/platform/logging/logging.go
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for a service. Output is JSON on stdout;
// set LOG_PRETTY=1 for human-readable console output during development.
func New(serviceName string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	var logger zerolog.Logger
	if os.Getenv("LOG_PRETTY") == "1" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

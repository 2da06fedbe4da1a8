package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Format is "json" or "console" (default).
func Setup(format, level string, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if strings.ToLower(format) == "json" {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name to zerolog.Level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns a logger with the given component name
func Get(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// PebbleLogger routes pebble's internal log output through zerolog
type PebbleLogger struct {
	Logger zerolog.Logger
}

// Infof implements pebble.Logger
func (l PebbleLogger) Infof(format string, args ...interface{}) {
	l.Logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Fatalf implements pebble.Logger
func (l PebbleLogger) Fatalf(format string, args ...interface{}) {
	l.Logger.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the application logger. Logs go to stderr so reports printed
// on stdout stay clean.
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stderr).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.DebugLevel)
}

// ParseLevel parses a level name, falling back to info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLevel applies the configured level to every logger of the process
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New bikin root logger utk satu service. Level dari LOG_LEVEL (default info),
// output JSON ke stdout biar gampang di-ship.
func New(service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btrader/internal/config"
	"btrader/internal/infra/version"
)

type Logger = zerolog.Logger

// NewLogger configures the global level and returns a logger tagged with the
// service name and build version.
func NewLogger(cfg config.Config) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var l zerolog.Logger
	if cfg.Logging.Pretty {
		l = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = log.Logger
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return l.With().Str("svc", "btrader").Str("version", version.Version).Logger()
}

// Nop is a disabled logger for tests and library callers that do not log.
func Nop() Logger { return zerolog.Nop() }

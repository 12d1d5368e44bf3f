package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const serviceName = "orderbook-trades"

// DefaultLevel is used when log.level is empty or unparseable. Collection
// progress is reported at info, so anything quieter would hide it.
const DefaultLevel = zerolog.InfoLevel

// InitLogger replaces the zerolog global logger according to cfg. Logs go to
// stderr unless cfg.File is set, in which case they are appended to that file
// for the lifetime of the process.
func InitLogger(cfg config.LogConfig) error {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out, err := openOutput(cfg.File)
	if err != nil {
		return err
	}

	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log.Logger = NewLogger(out, cfg)
	return nil
}

// NewLogger builds a logger writing to w. Prettified output is meant for a
// terminal; files and pipes should get JSON.
func NewLogger(w io.Writer, cfg config.LogConfig) zerolog.Logger {
	if cfg.Prettify {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Caller().
		Logger()
}

// Component derives a logger tagged with the given component name from the
// global logger.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func ParseLevel(value string) zerolog.Level {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultLevel
	}
	lvl, err := zerolog.ParseLevel(value)
	if err != nil || lvl == zerolog.NoLevel {
		return DefaultLevel
	}
	return lvl
}

func openOutput(path string) (io.Writer, error) {
	if path == "" {
		return os.Stderr, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

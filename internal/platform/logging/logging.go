// Package logging builds the zerolog logger shared by the CLI and the
// sandbox server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eyescreen/screening/internal/config"
)

// New returns a logger for cfg. When LOG_FILE is set, output goes to a
// rotated file so log lines never interleave with the terminal screens.
func New(cfg *config.Config, fallback io.Writer) zerolog.Logger {
	var out io.Writer = fallback
	if out == nil {
		out = os.Stderr
	}
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
	} else if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(out).
		Level(ParseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Package logging configures the process-wide slog logger. Command output
// meant for humans goes to stdout; logs always go to stderr so schedulers
// can capture them separately.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format string

const (
	JSONLog Format = "json"
	TextLog Format = "text"
)

const DefaultLevel = slog.LevelInfo

type Options struct {
	Debug  bool
	Level  string
	Format string
	Output io.Writer
}

// New builds a logger from opts. Debug wins over Level.
func New(opts Options) *slog.Logger {
	level := detectLevel(opts.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	switch detectFormat(opts.Format) {
	case JSONLog:
		return slog.New(slog.NewJSONHandler(out, handlerOpts))
	default:
		return slog.New(slog.NewTextHandler(out, handlerOpts))
	}
}

func detectLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	}
	return DefaultLevel
}

func detectFormat(format string) Format {
	if strings.ToLower(format) == string(JSONLog) {
		return JSONLog
	}
	return TextLog
}

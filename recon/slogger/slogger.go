// Package slogger configures the process-wide slog logger from the
// LOG_LEVEL environment variable. Call Init() at the start of main(); legacy
// log.Print* output is bridged through slog as well (Go 1.22+ behaviour of
// slog.SetDefault).
//
// Recognized LOG_LEVEL values: "debug", "info", "warn", "error" (default "info").
package slogger

import (
	"log/slog"
	"os"
	"strings"
)

var level *slog.LevelVar

// Init configures the global slog TextHandler on stdout at the level named
// by LOG_LEVEL.
func Init() {
	InitWithLevel(os.Getenv("LOG_LEVEL"))
}

// InitWithLevel is Init with an explicit level name, for callers that take
// the level from configuration instead of the environment.
func InitWithLevel(name string) {
	level = &slog.LevelVar{}
	level.Set(parseLevel(name))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// Level reports the current log level; useful for skipping expensive debug
// formatting.
func Level() slog.Level {
	if level == nil {
		return slog.LevelInfo
	}
	return level.Level()
}

// IsDebug reports whether debug logging is active.
func IsDebug() bool {
	return Level() <= slog.LevelDebug
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a project-standard slog logger tagged with the service
// name (api, worker, cli).
//   - env=dev: text handler with source locations
//   - env=prod: JSON handler without source locations
//
// LOG_LEVEL controls the level (debug/info/warn/error), default info.
func NewLogger(env, service string) *slog.Logger {
	return New(os.Stdout, env, service)
}

// New is NewLogger with an explicit destination, for tools whose stdout is
// reserved for output.
func New(w io.Writer, env, service string) *slog.Logger {
	return newLogger(w, env, service, parseLevel(os.Getenv("LOG_LEVEL")))
}

func newLogger(w io.Writer, env, service string, level slog.Level) *slog.Logger {
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(env), "prod") {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: false,
		})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}

	logger := slog.New(h)
	if service = strings.TrimSpace(service); service != "" {
		logger = logger.With("service", service)
	}
	return logger
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

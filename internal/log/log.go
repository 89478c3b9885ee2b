// Package log provides structured logging for go-pitchnav.
// It wraps slog with a process-wide logger whose level can be changed
// while the robot runs.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	once   sync.Once
)

// ParseLevel maps a level name to a slog level.
// Valid levels: "debug", "info", "warn", "error". Anything else is info.
func ParseLevel(name string) slog.Level {
	lvl, err := lookupLevel(name)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func lookupLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Init installs the global logger. Only the first call has an effect;
// use SetLevel afterwards.
func Init(name string) {
	once.Do(func() {
		level.Set(ParseLevel(name))
		opts := &slog.HandlerOptions{Level: level}

		// JSON on the robot, text on a laptop
		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}
		slog.SetDefault(logger)
	})
}

// SetLevel changes the level of the global logger.
func SetLevel(name string) error {
	lvl, err := lookupLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// Level returns the current level name.
func Level() string {
	return strings.ToLower(level.Level().String())
}

// L returns the global logger, initialising it at info level if needed.
func L() *slog.Logger {
	Init("info")
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { L().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { L().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { L().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { L().Error(msg, args...) }

// With returns a logger tagged with the given component name and attributes.
func With(component string, args ...any) *slog.Logger {
	return L().With(append([]any{"component", component}, args...)...)
}

// Package logging configures the process-wide structured logger.
//
// Commands log to stderr so stdout stays reserved for command output. The
// level comes from configuration unless --log-level overrides it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// silentLevel sits far above slog.LevelError so no record passes the
// handler filter.
const silentLevel = slog.Level(1000)

// levelNames maps accepted level names to slog levels. "none" is a
// tolerated alias for "silent" and is not advertised in ValidLogLevels.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"silent":  silentLevel,
	"none":    silentLevel,
}

// ParseLogLevel converts a level name to a slog.Level. Unknown names fall
// back to info; strict validation happens at the flag and config layers.
func ParseLogLevel(level string) slog.Level {
	if l, ok := levelNames[level]; ok {
		return l
	}
	return slog.LevelInfo
}

// ValidLogLevels returns the level names accepted by configuration and the
// --log-level flag, ordered from most to least verbose.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warning", "error", "silent"}
}

// InitLogging replaces the default slog logger with a text handler on
// stderr filtered to the named level.
func InitLogging(logLevel string) {
	slog.SetDefault(slog.New(newHandler(os.Stderr, logLevel)))
}

func newHandler(w io.Writer, logLevel string) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(logLevel)})
}

// LogLevel backs the persistent --log-level flag. It defaults to silent so
// command output stays clean; the root command falls back to the configured
// level when the flag was not given.
var LogLevel = &logLevelFlag{level: "silent"}

type logLevelFlag struct {
	level    string
	explicit bool
}

func (l *logLevelFlag) Set(value string) error {
	if !slices.Contains(ValidLogLevels(), value) {
		return fmt.Errorf("invalid value '%s'. Allowed values: %s",
			value, strings.Join(ValidLogLevels(), ", "))
	}
	l.level = value
	l.explicit = true
	return nil
}

func (l *logLevelFlag) String() string {
	return l.level
}

func (l *logLevelFlag) Type() string {
	return fmt.Sprintf("one of [%s]", strings.Join(ValidLogLevels(), "|"))
}

// IsSet reports whether --log-level was given on the command line.
func (l *logLevelFlag) IsSet() bool {
	return l.explicit
}

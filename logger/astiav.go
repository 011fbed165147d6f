// astiav.go bridges libav's logging into go-belt.

package logger

import (
	"context"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

func LogLevelToAstiav(level Level) astiav.LogLevel {
	switch level {
	case LevelUndefined:
		return astiav.LogLevelQuiet
	case LevelFatal:
		return astiav.LogLevelFatal
	case LevelPanic:
		return astiav.LogLevelPanic
	case LevelError:
		return astiav.LogLevelError
	case LevelWarning:
		return astiav.LogLevelWarning
	case LevelInfo:
		return astiav.LogLevelInfo
	case LevelDebug:
		return astiav.LogLevelVerbose
	case LevelTrace:
		return astiav.LogLevelDebug
	}
	return astiav.LogLevelWarning
}

func LogLevelFromAstiav(level astiav.LogLevel) Level {
	switch {
	case level <= astiav.LogLevelQuiet:
		return LevelUndefined
	case level <= astiav.LogLevelPanic:
		return LevelPanic
	case level <= astiav.LogLevelFatal:
		return LevelFatal
	case level <= astiav.LogLevelError:
		return LevelError
	case level <= astiav.LogLevelWarning:
		return LevelWarning
	case level <= astiav.LogLevelInfo:
		return LevelInfo
	case level <= astiav.LogLevelVerbose:
		return LevelDebug
	}
	return LevelTrace
}

// SetupAstiavLogging routes libav messages into the logger found in ctx.
func SetupAstiavLogging(ctx context.Context) {
	l := logger.FromCtx(ctx)
	astiav.SetLogLevel(LogLevelToAstiav(l.Level()))
	astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, fmt, msg string) {
		var cs string
		if c != nil {
			if cl := c.Class(); cl != nil {
				cs = " - class: " + cl.String()
			}
		}
		l.Logf(
			LogLevelFromAstiav(level),
			"%s%s",
			strings.TrimSpace(msg), cs,
		)
	})
}

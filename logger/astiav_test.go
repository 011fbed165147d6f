package logger

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
)

func TestLogLevelAstiavRoundTrip(t *testing.T) {
	for _, level := range []Level{
		LevelPanic,
		LevelFatal,
		LevelError,
		LevelWarning,
		LevelInfo,
		LevelDebug,
		LevelTrace,
	} {
		require.Equal(t, level, LogLevelFromAstiav(LogLevelToAstiav(level)), level.String())
	}
}

func TestLogLevelFromAstiavQuiet(t *testing.T) {
	require.Equal(t, LevelUndefined, LogLevelFromAstiav(astiav.LogLevelQuiet))
	require.Equal(t, LevelTrace, LogLevelFromAstiav(astiav.LogLevelTrace))
}

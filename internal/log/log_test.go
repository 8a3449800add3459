package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"Error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestKeyValueHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(zap.NewNop()) })

	Debug("debugging", "n", 1)
	Info("session created", "session", "abc")
	Warn("selection rejected", "reason", "inverted_range")
	Error("fetch failed", errors.New("boom"), "id", "work")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "abc", entries[1].ContextMap()["session"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)

	errEntry := entries[3]
	assert.Equal(t, zapcore.ErrorLevel, errEntry.Level)
	assert.Equal(t, "fetch failed", errEntry.Message)
	assert.Equal(t, "boom", errEntry.ContextMap()["err"])
	assert.Equal(t, "work", errEntry.ContextMap()["id"])
}

func TestSetLevelFiltersBuiltLogger(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })

	SetLevel(LevelWarn)
	assert.False(t, level.Enabled(zapcore.InfoLevel))
	assert.True(t, level.Enabled(zapcore.WarnLevel))

	SetLevel(LevelDebug)
	assert.True(t, level.Enabled(zapcore.DebugLevel))
}

package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String())

	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "[WARN] warn message")

	logger.Error("error: %s", "boom")
	assert.Contains(t, buf.String(), "[ERROR] error: boom")
}

func TestDefaultLoggerDebugLevelEmitsEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LevelDebug)

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	out := buf.String()
	for _, want := range []string{"[DEBUG] d", "[INFO] i", "[WARN] w", "[ERROR] e"} {
		assert.True(t, strings.Contains(out, want), "expected %q in %q", want, out)
	}
}

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	var l NoOpLogger
	// Must not panic; there's nothing to assert beyond that.
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":       LevelDebug,
		"DEBUG":       LevelDebug,
		"warn":        LevelWarn,
		"WARN":        LevelWarn,
		"error":       LevelError,
		"ERROR":       LevelError,
		"none":        LevelNone,
		"NONE":        LevelNone,
		"info":        LevelInfo,
		"garbage":     LevelInfo,
		"":            LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), "ParseLevel(%q)", input)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "NONE", LevelNone.String())
	assert.Equal(t, "UNKNOWN(99)", Level(99).String())
}

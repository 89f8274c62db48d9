package logger

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(level LogLevel, json bool) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(&Config{Level: level, Output: &buf, JSON: json, TimeFormat: "15:04:05"}), &buf
}

func TestFromContext(t *testing.T) {
	t.Run("Should return logger stored in context", func(t *testing.T) {
		expected := NewLogger(TestConfig())
		ctx := ContextWithLogger(t.Context(), expected)
		assert.Equal(t, expected, FromContext(ctx))
	})

	t.Run("Should fall back to default logger", func(t *testing.T) {
		l := FromContext(t.Context())
		require.NotNil(t, l)
		l.Info("fallback logger works")
	})

	t.Run("Should ignore values of the wrong type", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, "not a logger")
		require.NotNil(t, FromContext(ctx))
	})

	t.Run("Should ignore a nil logger", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, (Logger)(nil))
		require.NotNil(t, FromContext(ctx))
	})
}

func TestLogLevel(t *testing.T) {
	t.Run("Should map levels onto charm levels", func(t *testing.T) {
		cases := map[LogLevel]int{
			DebugLevel:          -4,
			InfoLevel:           0,
			WarnLevel:           4,
			ErrorLevel:          8,
			DisabledLevel:       1000,
			LogLevel("unknown"): 0,
		}
		for level, expected := range cases {
			assert.Equal(t, expected, int(level.ToCharmlogLevel()), "level %s", level)
		}
	})

	t.Run("Should parse user supplied names", func(t *testing.T) {
		assert.Equal(t, DebugLevel, ParseLevel(" DEBUG "))
		assert.Equal(t, DisabledLevel, ParseLevel("disabled"))
		assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write text records", func(t *testing.T) {
		l, buf := bufferLogger(InfoLevel, false)
		l.Info("document staged", "name", "report.pdf")
		assert.Contains(t, buf.String(), "document staged")
		assert.Contains(t, buf.String(), "report.pdf")
	})

	t.Run("Should write JSON records when enabled", func(t *testing.T) {
		l, buf := bufferLogger(InfoLevel, true)
		l.Info("indexing finished")
		out := strings.TrimSpace(buf.String())
		assert.True(t, strings.HasPrefix(out, "{"))
		assert.Contains(t, out, `"msg":"indexing finished"`)
	})

	t.Run("Should carry fields added with With", func(t *testing.T) {
		l, buf := bufferLogger(InfoLevel, false)
		l.With("session_id", "s-1").Info("turn completed")
		assert.Contains(t, buf.String(), "session_id")
		assert.Contains(t, buf.String(), "s-1")
	})

	t.Run("Should filter records below the configured level", func(t *testing.T) {
		l, buf := bufferLogger(WarnLevel, false)
		l.Debug("debug message")
		l.Info("info message")
		l.Warn("warn message")
		l.Error("error message")
		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("Should drop everything when disabled", func(t *testing.T) {
		l, buf := bufferLogger(DisabledLevel, false)
		l.Error("error message")
		assert.Empty(t, buf.String())
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Run("Should provide default configuration", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, InfoLevel, cfg.Level)
		assert.Equal(t, os.Stdout, cfg.Output)
		assert.Equal(t, "15:04:05", cfg.TimeFormat)
	})

	t.Run("Should provide silent test configuration", func(t *testing.T) {
		cfg := TestConfig()
		assert.Equal(t, DisabledLevel, cfg.Level)
		assert.Equal(t, io.Discard, cfg.Output)
	})

	t.Run("Should detect go test binaries", func(t *testing.T) {
		assert.True(t, IsTestEnvironment())
	})
}

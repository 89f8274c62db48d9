package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/compozy/docbuddy/cli/tui/models"
	"github.com/compozy/docbuddy/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCliError(t *testing.T) {
	t.Run("Should create error with code and message", func(t *testing.T) {
		err := NewCliError("TEST_ERROR", "Test message")
		assert.Equal(t, "TEST_ERROR", err.Code)
		assert.Equal(t, "Test message", err.Message)
		assert.Empty(t, err.Details)
	})

	t.Run("Should implement error interface", func(t *testing.T) {
		assert.Equal(t, "TEST_ERROR: Test message", NewCliError("TEST_ERROR", "Test message").Error())
		assert.Equal(t, "TEST_ERROR: Test message (Details)", NewCliError("TEST_ERROR", "Test message", "Details").Error())
	})

	t.Run("Should keep the cause reachable when wrapping", func(t *testing.T) {
		cause := core.NewError(errors.New("dial"), core.CodeConnection, nil)
		err := WrapCliError("NETWORK_ERROR", "Network connection failed", cause)
		assert.ErrorIs(t, err, core.ErrConnection)
		assert.Equal(t, cause.Error(), err.Details)
	})

	t.Run("Should join several details", func(t *testing.T) {
		err := NewCliError("TEST_ERROR", "Test message", "a.pdf", "page 2")
		assert.Equal(t, "a.pdf; page 2", err.Details)
	})
}

func TestErrorClassification(t *testing.T) {
	t.Run("Should detect timeouts", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()
		assert.True(t, IsTimeoutError(ctx.Err()))
		assert.True(t, IsTimeoutError(errors.New("request timed out")))
		assert.False(t, IsTimeoutError(nil))
		assert.False(t, IsTimeoutError(errors.New("bad input")))
	})

	t.Run("Should detect connection failures by code and by text", func(t *testing.T) {
		coded := fmt.Errorf("embed: %w", core.NewError(errors.New("boom"), core.CodeConnection, nil))
		assert.True(t, IsNetworkError(coded))
		assert.True(t, IsNetworkError(errors.New("dial tcp: connection refused")))
		assert.False(t, IsNetworkError(errors.New("unsupported format")))
		assert.False(t, IsNetworkError(nil))
	})
}

func TestFormatError(t *testing.T) {
	t.Run("Should format CLI errors for JSON mode", func(t *testing.T) {
		formatted := FormatError(NewCliError("TEST_ERROR", "Test message", "Test details"), models.ModeJSON)
		assert.Contains(t, formatted, `"code": "TEST_ERROR"`)
		assert.Contains(t, formatted, "Test message")
		assert.Contains(t, formatted, "Test details")
	})

	t.Run("Should surface core error codes in JSON mode", func(t *testing.T) {
		err := core.Errorf(core.CodeUnsupportedFormat, "unsupported file type: %s", ".xyz")
		formatted := FormatError(err, models.ModeJSON)
		assert.Contains(t, formatted, core.CodeUnsupportedFormat)
		assert.Contains(t, formatted, ".xyz")
	})

	t.Run("Should format errors for TUI mode", func(t *testing.T) {
		formatted := FormatError(NewCliError("TEST_ERROR", "Test message", "more"), models.ModeTUI)
		assert.Contains(t, formatted, "❌")
		assert.Contains(t, formatted, "Test message")
		assert.Contains(t, formatted, "Details: more")
	})

	t.Run("Should return empty string for nil", func(t *testing.T) {
		assert.Empty(t, FormatError(nil, models.ModeJSON))
	})

	t.Run("Should write to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		OutputError(&buf, errors.New("plain"), models.ModeJSON)
		assert.Contains(t, buf.String(), `"error": "plain"`)
	})
}

func TestFormatting(t *testing.T) {
	t.Run("Should truncate long strings", func(t *testing.T) {
		assert.Equal(t, "hello", Truncate("hello", 10))
		assert.Equal(t, "hel...", Truncate("hello world", 6))
		assert.Equal(t, "he", Truncate("hello", 2))
	})

	t.Run("Should pluralize", func(t *testing.T) {
		assert.Equal(t, "chunk", Pluralize(1, "chunk", "chunks"))
		assert.Equal(t, "chunks", Pluralize(0, "chunk", "chunks"))
	})

	t.Run("Should format durations", func(t *testing.T) {
		assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
		assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
		assert.Equal(t, "2.0m", FormatDuration(2*time.Minute))
	})

	t.Run("Should write indented JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteJSON(&buf, map[string]int{"chunks": 3}))
		assert.Equal(t, "{\n  \"chunks\": 3\n}\n", buf.String())
	})
}

package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/compozy/docbuddy/cli/tui/models"
	"github.com/compozy/docbuddy/cli/tui/styles"
	"github.com/compozy/docbuddy/engine/core"
)

// CliError is the error shape printed by every command. Code is a stable
// upper-case identifier; Details carries the underlying message.
type CliError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
	cause   error
}

func (e *CliError) Error() string {
	if e.Details == "" {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

func (e *CliError) Unwrap() error {
	return e.cause
}

func NewCliError(code, message string, details ...string) *CliError {
	return &CliError{Code: code, Message: message, Details: strings.Join(details, "; ")}
}

// WrapCliError builds a CliError whose Details is cause's text and whose
// chain reaches cause.
func WrapCliError(code, message string, cause error) *CliError {
	return &CliError{Code: code, Message: message, Details: cause.Error(), cause: cause}
}

var (
	timeoutHints = []string{"timeout", "timed out"}
	networkHints = []string{
		"connection refused", "connection reset", "connection timeout",
		"no route to host", "network unreachable", "dns",
	}
)

func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || mentions(err, timeoutHints)
}

// IsNetworkError reports failures reaching the embedder, the vector database
// or the chat model.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, core.ErrConnection) || mentions(err, networkHints)
}

func mentions(err error, hints []string) bool {
	msg := strings.ToLower(err.Error())
	for _, h := range hints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return false
}

// describe flattens err into a CliError, keeping core error codes.
func describe(err error) *CliError {
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	out := &CliError{Message: err.Error()}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		out.Code = coreErr.Code
	}
	return out
}

// FormatError renders err for mode. JSON mode always includes "error" and
// "details"; "code" only when known.
func FormatError(err error, mode models.Mode) string {
	if err == nil {
		return ""
	}
	info := describe(err)
	if mode != models.ModeTUI {
		body := map[string]any{"error": info.Message, "details": info.Details}
		if info.Code != "" {
			body["code"] = info.Code
		}
		out, jsonErr := json.MarshalIndent(body, "", "  ")
		if jsonErr != nil {
			return `{"error": "JSON marshaling failed", "details": ""}`
		}
		return string(out)
	}
	icon := "❌"
	switch {
	case IsNetworkError(err):
		icon = "🌐"
	case IsTimeoutError(err):
		icon = "⏰"
	}
	text := icon + " " + styles.ErrorStyle.Render(info.Message)
	if info.Details != "" {
		text += "\n" + styles.MutedStyle.Italic(true).Render("Details: "+info.Details)
	}
	return text
}

func OutputError(w io.Writer, err error, mode models.Mode) {
	if err != nil {
		fmt.Fprintln(w, FormatError(err, mode))
	}
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate cuts s to at most n bytes, replacing the tail with "..." when n
// leaves room for it.
func Truncate(s string, n int) string {
	switch {
	case len(s) <= n:
		return s
	case n <= 3:
		return s[:n]
	default:
		return s[:n-3] + "..."
	}
}

func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// FormatDuration prints d in the largest unit below it, with one decimal
// above a second.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}

package core

import (
	"errors"
	"fmt"
)

// Error codes shared by every DocBuddy component.
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeEmptyDocument     = "EMPTY_DOCUMENT"
	CodeConnection        = "CONNECTION_ERROR"
	CodeAssistant         = "ASSISTANT_ERROR"
)

var (
	ErrUnsupportedFormat = &Error{Code: CodeUnsupportedFormat, Message: "unsupported file format"}
	ErrEmptyDocument     = &Error{Code: CodeEmptyDocument, Message: "document produced no text"}
	ErrConnection        = &Error{Code: CodeConnection, Message: "connection failed"}
	ErrAssistant         = &Error{Code: CodeAssistant, Message: "assistant failed"}
)

// Error is a coded failure. errors.Is matches any two errors with the same code,
// so callers compare against the sentinels above.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	err     error
}

// NewError wraps err under code. A nil err leaves Message empty unless set later.
func NewError(err error, code string, details map[string]any) *Error {
	e := &Error{Code: code, Details: details, err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// Errorf builds a coded error with a formatted message. %w verbs are honored.
func Errorf(code string, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Code: code, Message: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.err != nil {
		return e.err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

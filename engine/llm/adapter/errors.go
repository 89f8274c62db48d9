package llmadapter

import (
	"errors"
	"fmt"
)

// Error codes produced by ErrorParser.
const (
	ErrCodeRateLimit         = "RATE_LIMIT"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidModel      = "INVALID_MODEL"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeConnectionRefused = "CONNECTION_REFUSED"
	ErrCodeConnectionReset   = "CONNECTION_RESET"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeHTTPStatus        = "HTTP_STATUS"
)

// Error is a classified provider failure.
type Error struct {
	Code       string
	StatusCode int
	Message    string
	Provider   string
	err        error
}

func NewError(statusCode int, message, provider string, err error) *Error {
	return &Error{
		Code:       codeForStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
		Provider:   provider,
		err:        err,
	}
}

func NewErrorWithCode(code, message, provider string, err error) *Error {
	return &Error{Code: code, Message: message, Provider: provider, err: err}
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%s, status %d): %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// IsConnection reports failures where the model server could not be reached.
func (e *Error) IsConnection() bool {
	switch e.Code {
	case ErrCodeConnectionRefused, ErrCodeConnectionReset, ErrCodeTimeout, ErrCodeUnavailable:
		return true
	}
	return false
}

// AsError extracts a classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

func codeForStatus(status int) string {
	switch status {
	case 429:
		return ErrCodeRateLimit
	case 401, 403:
		return ErrCodeUnauthorized
	case 404:
		return ErrCodeInvalidModel
	case 502, 503, 504:
		return ErrCodeUnavailable
	default:
		return ErrCodeHTTPStatus
	}
}

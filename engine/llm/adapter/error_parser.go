package llmadapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorParser turns raw provider errors into *Error values.
type ErrorParser struct {
	provider string
}

func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

var statusPattern = regexp.MustCompile(`(?:status code:?|http|status) ?([1-5][0-9]{2})\b`)

// textRule classifies a lowercased message by substring. Rules with a
// status build the code from it; the rest use code directly.
type textRule struct {
	needles  []string
	status   int
	code     string
	provider Provider
}

// Order matters: earlier rules win.
var textRules = []textRule{
	{needles: []string{"rate limit", "rate-limit", "ratelimit", "too many requests", "throttl"}, status: http.StatusTooManyRequests},
	{needles: []string{"service unavailable", "temporarily unavailable", "overloaded", "try again later"}, status: http.StatusServiceUnavailable},
	{needles: []string{"unauthorized", "invalid api key", "invalid_api_key", "authentication"}, status: http.StatusUnauthorized},
	{needles: []string{"insufficient_quota"}, code: ErrCodeQuotaExceeded, provider: ProviderOpenAI},
	{needles: []string{"timeout", "timed out", "deadline exceeded"}, code: ErrCodeTimeout},
	{needles: []string{"connection reset"}, code: ErrCodeConnectionReset},
	{needles: []string{"connection refused", "connection failed", "no such host", "network is unreachable", "eof"}, code: ErrCodeConnectionRefused},
}

// ParseError classifies err. It returns nil when nothing matches.
func (p *ErrorParser) ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	if classified, ok := AsError(err); ok {
		return classified
	}
	msg := err.Error()
	if code := transportCode(err); code != "" {
		return NewErrorWithCode(code, msg, p.provider, err)
	}
	lower := strings.ToLower(msg)
	if status := statusFromMessage(lower); status > 0 {
		return NewError(status, msg, p.provider, err)
	}
	if strings.Contains(lower, "model") && strings.Contains(lower, "not found") {
		return NewErrorWithCode(ErrCodeInvalidModel, msg, p.provider, err)
	}
	for _, rule := range textRules {
		if rule.provider != "" && string(rule.provider) != p.provider {
			continue
		}
		if !containsAny(lower, rule.needles) {
			continue
		}
		if rule.status > 0 {
			return NewError(rule.status, msg, p.provider, err)
		}
		return NewErrorWithCode(rule.code, msg, p.provider, err)
	}
	return nil
}

func transportCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ErrCodeConnectionRefused
	}
	return ""
}

// statusFromMessage finds an HTTP error status (>= 400) in msg.
func statusFromMessage(msg string) int {
	match := statusPattern.FindStringSubmatch(msg)
	if len(match) < 2 {
		return 0
	}
	code, err := strconv.Atoi(match[1])
	if err != nil || code < http.StatusBadRequest {
		return 0
	}
	return code
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

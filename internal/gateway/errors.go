package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorCode is the gateway failure kind.
type ErrorCode string

const (
	CodeInvalidRegistrationToken ErrorCode = "invalid-registration-token"
	CodeTokenNotRegistered       ErrorCode = "registration-token-not-registered"
	CodeUnavailable              ErrorCode = "unavailable"
	CodeUnknown                  ErrorCode = "unknown"
)

const codePrefix = "messaging/"

// ParseErrorCode accepts codes with or without the "messaging/" prefix. Unrecognized codes map to CodeUnknown.
func ParseErrorCode(raw string) ErrorCode {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, codePrefix)

	switch ErrorCode(normalized) {
	case CodeInvalidRegistrationToken, CodeTokenNotRegistered, CodeUnavailable:
		return ErrorCode(normalized)
	}
	if normalized == "unregistered" {
		return CodeTokenNotRegistered
	}
	return CodeUnknown
}

// Error classifies a failed gateway call.
type Error struct {
	StatusCode int
	Code       ErrorCode
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 5)
	parts = append(parts, "gateway error")

	if e.Code != "" {
		parts = append(parts, codePrefix+string(e.Code))
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsInvalidToken reports whether the gateway declared the delivery token dead.
func IsInvalidToken(err error) bool {
	var gatewayErr *Error
	if !errors.As(err, &gatewayErr) {
		return false
	}
	return gatewayErr.Code == CodeInvalidRegistrationToken || gatewayErr.Code == CodeTokenNotRegistered
}

// IsTransient reports whether the failure looks temporary. It only labels failures; sends are never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var gatewayErr *Error
	if errors.As(err, &gatewayErr) {
		if gatewayErr.Code == CodeUnavailable {
			return true
		}
		return gatewayErr.StatusCode == 429 || gatewayErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

package domain

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("not found")

type ErrorCode string

const (
	ErrorCodeUnexpectedError ErrorCode = "unexpected_error"
	ErrorCodeInvalidInput    ErrorCode = "invalid_input"
	ErrorCodeNotFound        ErrorCode = "not_found"
	ErrorCodeUnauthorized    ErrorCode = "unauthorized"
	ErrorCodeNotReady        ErrorCode = "not_ready"
	ErrorCodeUserError       ErrorCode = "user_error"
	ErrorCodeSkip            ErrorCode = "skip"
)

// Error is a failure the gateway layer can translate into user-facing
// messages. Code ErrorCodeSkip is a silent no-op: callers must not surface
// anything for it.
type Error struct {
	Code     ErrorCode
	Messages []string
}

func NewError(code ErrorCode, messages ...string) *Error {
	return &Error{Code: code, Messages: messages}
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return string(e.Code)
	}
	return string(e.Code) + ": " + strings.Join(e.Messages, "; ")
}

func (e *Error) IsSkip() bool { return e.Code == ErrorCodeSkip }

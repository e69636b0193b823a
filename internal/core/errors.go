package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeUnknownCommand = "unknown_command"
	ErrCodeUserNotFound   = "user_not_found"
	ErrCodeStoreError     = "store_error"
	ErrCodeMuted          = "muted"
	ErrCodeSendFailed     = "send_failed"
	ErrCodeInternal       = "internal"
)

// ErrBanned is returned by Manager.Connect for a banned account.
var ErrBanned = errors.New("user is banned")

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	// Err is the underlying cause, logged but never sent to clients.
	Err error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func coreErrorf(code, format string, args ...any) *CoreError {
	return &CoreError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func storeError(msg string, err error) *CoreError {
	return &CoreError{Code: ErrCodeStoreError, Message: msg, Err: err}
}

// asCoreError maps any error to a CoreError suitable for a private error event.
func asCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return &CoreError{Code: ErrCodeInternal, Message: "command failed", Err: err}
}

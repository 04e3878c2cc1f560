package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
	// ErrCodeTransientNetwork is only produced client side, when a write never reached the server
	// or its answer was lost.
	ErrCodeTransientNetwork ErrorCode = "TRANSIENT_NETWORK"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrTaskNotFound     = NewError(ErrCodeNotFound, "task not found")
	ErrSubtaskNotFound  = NewError(ErrCodeNotFound, "subtask not found")
	ErrUnauthorized     = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrNotClassMember   = NewError(ErrCodeUnauthorized, "user is not a member of the task's class")
	ErrNotGroupMember   = NewError(ErrCodeUnauthorized, "user is not a member of the group task")
	ErrNotGroupTask     = NewError(ErrCodeInvalid, "task is not a group task")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
	ErrCascadeConflict  = NewError(ErrCodeConflict, "concurrent completion update, retry")
	ErrTransientNetwork = NewError(ErrCodeTransientNetwork, "network failure, change was not saved")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

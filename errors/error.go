// Package errors defines the typed error taxonomy used across the staking
// core. Every mutator returns either nil or an *Error so callers can branch
// on Code without parsing message strings.
package errors

import (
	"errors"
	"fmt"
)

// ERR enumerates the error taxonomy of the staking core.
type ERR int

const (
	ERR_UNKNOWN ERR = iota
	ERR_INVALID_INPUT
	ERR_PRECONDITION_FAILED
	ERR_AUTHORIZATION_FAILED
	ERR_QUOTA_EXCEEDED
	ERR_NOT_FOUND
	ERR_CONFLICT
	ERR_FATAL
	ERR_STORAGE
	ERR_CONFIGURATION
	ERR_PROCESSING
)

var errName = map[ERR]string{
	ERR_UNKNOWN:              "UNKNOWN",
	ERR_INVALID_INPUT:        "INVALID_INPUT",
	ERR_PRECONDITION_FAILED:  "PRECONDITION_FAILED",
	ERR_AUTHORIZATION_FAILED: "AUTHORIZATION_FAILED",
	ERR_QUOTA_EXCEEDED:       "QUOTA_EXCEEDED",
	ERR_NOT_FOUND:            "NOT_FOUND",
	ERR_CONFLICT:             "CONFLICT",
	ERR_FATAL:                "FATAL",
	ERR_STORAGE:              "STORAGE",
	ERR_CONFIGURATION:        "CONFIGURATION",
	ERR_PROCESSING:           "PROCESSING",
}

func (c ERR) String() string {
	if s, ok := errName[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Error is the concrete error type returned by every staking-core mutator.
type Error struct {
	Code       ERR
	Message    string
	WrappedErr error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.WrappedErr == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.WrappedErr)
}

// Unwrap lets errors.Is/errors.As walk the chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.WrappedErr
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// New builds an *Error, optionally wrapping a trailing error parameter.
func New(code ERR, format string, params ...interface{}) *Error {
	var wrapped error
	if n := len(params); n > 0 {
		if err, ok := params[n-1].(error); ok {
			wrapped = err
			params = params[:n-1]
		}
	}

	msg := format
	if len(params) > 0 {
		msg = fmt.Sprintf(format, params...)
	}

	return &Error{Code: code, Message: msg, WrappedErr: wrapped}
}

func NewInvalidInputError(format string, params ...interface{}) *Error {
	return New(ERR_INVALID_INPUT, format, params...)
}

func NewPreconditionError(format string, params ...interface{}) *Error {
	return New(ERR_PRECONDITION_FAILED, format, params...)
}

func NewAuthorizationError(format string, params ...interface{}) *Error {
	return New(ERR_AUTHORIZATION_FAILED, format, params...)
}

func NewQuotaExceededError(format string, params ...interface{}) *Error {
	return New(ERR_QUOTA_EXCEEDED, format, params...)
}

func NewNotFoundError(format string, params ...interface{}) *Error {
	return New(ERR_NOT_FOUND, format, params...)
}

func NewConflictError(format string, params ...interface{}) *Error {
	return New(ERR_CONFLICT, format, params...)
}

func NewFatalError(format string, params ...interface{}) *Error {
	return New(ERR_FATAL, format, params...)
}

func NewStorageError(format string, params ...interface{}) *Error {
	return New(ERR_STORAGE, format, params...)
}

func NewConfigurationError(format string, params ...interface{}) *Error {
	return New(ERR_CONFIGURATION, format, params...)
}

func NewProcessingError(format string, params ...interface{}) *Error {
	return New(ERR_PROCESSING, format, params...)
}

// IsFatal reports whether err is (or wraps) a Fatal-classed error — per
// spec.md 7, settlement errors of this class must halt the node rather than
// let Commit emit a divergent state root.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ERR_FATAL
	}
	return false
}

// Is re-exports the standard library so call sites need only import this
// package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports the standard library so call sites need only import this
// package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join re-exports the standard library.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

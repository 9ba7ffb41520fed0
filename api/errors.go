// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-ring.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrTransportClosed   = errors.New("transport is closed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrNotSupported      = errors.New("operation not supported")

	// ErrLeaseExhausted reports that the lease manager had no block to hand out.
	// Fatal for the write side; never retried internally.
	ErrLeaseExhausted = errors.New("unable to allocate transfer memory block")

	// ErrLeaseReleased is returned by writes attempted after the lease was given back.
	ErrLeaseReleased = errors.New("transfer memory already released")

	// ErrCapacityViolation reports a flush larger than the currently writable bytes.
	ErrCapacityViolation = errors.New("flush exceeds writable bytes")

	// ErrAckOutOfRange reports an acknowledgment that cannot belong to the
	// in-flight window. Protocol-fatal for the channel.
	ErrAckOutOfRange = errors.New("acknowledgment out of range")

	// ErrInvalidConfig reports a configuration rejected by validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeLeaseExhausted
	ErrCodeLeaseReleased
	ErrCodeCapacityViolation
	ErrCodeAckOutOfRange
	ErrCodeInvalidConfig
	ErrCodeInternal
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument:   ErrInvalidArgument,
	ErrCodeResourceExhausted: ErrResourceExhausted,
	ErrCodeNotSupported:      ErrNotSupported,
	ErrCodeLeaseExhausted:    ErrLeaseExhausted,
	ErrCodeLeaseReleased:     ErrLeaseReleased,
	ErrCodeCapacityViolation: ErrCapacityViolation,
	ErrCodeAckOutOfRange:     ErrAckOutOfRange,
	ErrCodeInvalidConfig:     ErrInvalidConfig,
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap maps the code back to its sentinel so errors.Is works on both.
func (e *Error) Unwrap() error {
	return codeSentinels[e.Code]
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for code, sentinel := range codeSentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrCodeInternal
}

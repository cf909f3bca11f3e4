// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-lowlat.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSupported      = errors.New("operation not supported")
	ErrNotListening      = errors.New("server is not listening")
	ErrAlreadyListening  = errors.New("server is already listening")
	ErrPeerClosed        = errors.New("peer closed connection")
	ErrOutboundFull      = errors.New("outbound buffer full")
	ErrSocketClosed      = errors.New("socket is closed")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	// ErrCodeSetup marks address resolution and socket/bind/listen failures.
	// These are not retried at this layer.
	ErrCodeSetup
	// ErrCodePeer marks resets and hangups reported on an established socket.
	ErrCodePeer
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	case ErrCodeResourceExhausted:
		return "resource-exhausted"
	case ErrCodeNotSupported:
		return "not-supported"
	case ErrCodeSetup:
		return "setup"
	case ErrCodePeer:
		return "peer"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or ErrCodeOK
// for nil and ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsSetup reports whether err is a setup/configuration failure.
func IsSetup(err error) bool {
	return CodeOf(err) == ErrCodeSetup
}

// IsPeer reports whether err was initiated by the remote side.
func IsPeer(err error) bool {
	return errors.Is(err, ErrPeerClosed) || CodeOf(err) == ErrCodePeer
}

package xcoder

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed classification-level taxonomy a caller can
// branch on (spec.md §7).
type ErrorCode string

const (
	ErrCodeInvalidSession       ErrorCode = "invalid session"
	ErrCodeRetryExhausted       ErrorCode = "retry exhausted"
	ErrCodeFatalSession         ErrorCode = "fatal session"
	ErrCodeFatalPersistent      ErrorCode = "fatal persistent"
	ErrCodeMemAlloc             ErrorCode = "memory allocation failed"
	ErrCodeUnsupportedFwVersion ErrorCode = "unsupported firmware version"
	ErrCodeVpuRecovery          ErrorCode = "vpu recovery"
	ErrCodeInvalidParam         ErrorCode = "invalid parameter"
	ErrCodeWriteBufferFull      ErrorCode = "write buffer full"
	ErrCodeEOS                  ErrorCode = "end of stream"
	ErrCodeIO                   ErrorCode = "I/O error"
)

// Error is the structured error every exported operation returns on
// failure: which session, which LBA operation, and a closed code a
// caller can switch on without string matching.
type Error struct {
	Op        string
	SessionID uint16
	LBA       uint32
	Code      ErrorCode
	Msg       string
	Inner     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.SessionID != 0 {
		return fmt.Sprintf("xcoder: %s (op=%s session=%d): %s", e.Code, e.Op, e.SessionID, msg)
	}
	return fmt.Sprintf("xcoder: %s (op=%s): %s", e.Code, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a structured error without an underlying cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewSessionError builds a structured error scoped to a session.
func NewSessionError(op string, sessionID uint16, code ErrorCode, msg string) *Error {
	return &Error{Op: op, SessionID: sessionID, Code: code, Msg: msg}
}

// WrapError attaches op/code context to an inner error, preserving the
// inner error's code if it is itself a *Error and code is unset.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if code == "" {
		var xe *Error
		if errors.As(inner, &xe) {
			code = xe.Code
		} else {
			code = ErrCodeIO
		}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Code == code
	}
	return false
}

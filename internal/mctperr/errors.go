// Package mctperr provides the structured error type shared by every stage
// of the transport pipeline, plus classification helpers. It is modeled
// on go-ublk's own structured *Error — an Op/Code/Inner triple with
// errors.Is/errors.As support — extended with pkg/errors.Wrap at stage
// boundaries so a failure surfaces its originating call stack alongside
// the pipeline-level classification.
package mctperr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code is a high-level error category, one per §7 error kind of the
// transport specification.
type Code string

const (
	CodeProtocol       Code = "protocol violation"
	CodeBackpressure   Code = "backpressure"
	CodeTransport      Code = "transport failure"
	CodeRetryExhausted Code = "retry exhausted"
	CodeSubmit         Code = "submit rejected"
	CodeShutdown       Code = "shutdown"
	CodeBind           Code = "bind failed"
	CodeConnect        Code = "connect failed"
	CodeStartupTimeout Code = "startup timeout"
	CodeInternal       Code = "internal error"
)

// Error is a structured pipeline error with enough context to diagnose
// which stage, which connection, and which underlying cause produced it.
type Error struct {
	Op    string // stage or operation that failed, e.g. "socket-reader"
	Tag   int    // tag involved, -1 if not applicable
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Tag >= 0 {
		return fmt.Sprintf("mctp: %s: %s (op=%s tag=%d)", e.Code, msg, e.Op, e.Tag)
	}
	if e.Op != "" {
		return fmt.Sprintf("mctp: %s: %s (op=%s)", e.Code, msg, e.Op)
	}
	return fmt.Sprintf("mctp: %s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// New creates an Error with no tag context.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Tag: -1, Code: code, Msg: msg}
}

// NewTagged creates an Error attributed to a specific tag.
func NewTagged(op string, tag int, code Code, msg string) *Error {
	return &Error{Op: op, Tag: tag, Code: code, Msg: msg}
}

// Wrap attaches pipeline context to an underlying error. The inner error's
// stack is preserved via pkg/errors.Wrap so %+v formatting shows both the
// pipeline classification and the original call site.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{
		Op:    op,
		Tag:   -1,
		Code:  code,
		Msg:   inner.Error(),
		Inner: pkgerrors.Wrap(inner, op),
	}
}

// Is reports whether err is a pipeline Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

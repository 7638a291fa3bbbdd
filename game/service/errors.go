package service

import (
	"errors"
	"fmt"
)

// Kind classifies service failures so transports can map them to statuses
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindUpstream     Kind = "upstream"
)

// Error is the error type returned by GameService operations
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "fire"
	Msg  string // user-facing message
	Err  error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err == nil || e.Kind != KindUpstream:
		return e.Msg
	default:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUpstream for errors that did not
// come from the service.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstream
}

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// upstream wraps a repository failure. Service errors raised inside a
// transaction pass through untouched.
func upstream(op, msg string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindUpstream, Op: op, Msg: msg, Err: err}
}

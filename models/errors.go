package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can map them to a response.
type ErrorKind string

const (
	KindConnection   ErrorKind = "connection"
	KindQuery        ErrorKind = "query"
	KindNoConversion ErrorKind = "no_conversion"
	KindTimeout      ErrorKind = "timeout"
)

// Error is the engine's error type. Op names the failing operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrConnection   = &Error{Kind: KindConnection}
	ErrQuery        = &Error{Kind: KindQuery}
	ErrNoConversion = &Error{Kind: KindNoConversion}
	ErrTimeout      = &Error{Kind: KindTimeout}
)

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s error in %s", e.Kind, e.Op)
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

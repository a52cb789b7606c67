package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Other Kind = iota
	Invalid
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid operation"
	case NotFound:
		return "item does not exist"
	}
	return "unknown error"
}

// Error attaches a Kind to an error so that it maps to an HTTP status.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errInvalid(format string, args ...interface{}) error {
	return &Error{Kind: Invalid, Err: fmt.Errorf(format, args...)}
}

func errNotFound(format string, args ...interface{}) error {
	return &Error{Kind: NotFound, Err: fmt.Errorf(format, args...)}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

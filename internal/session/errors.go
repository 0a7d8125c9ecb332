package session

import (
	"errors"
	"fmt"
)

var (
	ErrMediaDenied  = errors.New("access to local media denied")
	ErrTokenRequest = errors.New("token request failed")
	ErrNotConnected = errors.New("not connected to a room")
	ErrTimeout      = errors.New("timeout")
	ErrSignaling    = errors.New("signaling server error")
	ErrNoWhiteboard = errors.New("whiteboard not ready")
	ErrEmptyName    = errors.New("name must not be empty")
)

type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

package transport

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownArch = errors.New("unknown arch mode")
	ErrNoEndpoint  = errors.New("flight info has no endpoint")
)

// Error is a failed exchange with the backend. Its text is shown to the
// user as is.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("Failed to get reply: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

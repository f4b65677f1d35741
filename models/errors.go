package models

import (
	"errors"
	"fmt"

	"github.com/fnndsc/pfbuild/steps"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrTransport    = errors.New("transport error")
	ErrServer       = errors.New("server error")
	ErrInvalidState = errors.New("invalid state")
)

// Error is a failure scoped to one step of one run. Kind is one of the
// sentinel errors above, so callers select the class with errors.Is.
type Error struct {
	Kind error
	Step steps.Id
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Step != "" {
		msg = fmt.Sprintf("%s: step %s", msg, e.Step)
	}
	if e.Msg != "" {
		msg = msg + ": " + e.Msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func ValidationError(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

func TransportError(step steps.Id, err error) error {
	return &Error{Kind: ErrTransport, Step: step, Err: err}
}

func ServerError(step steps.Id, msg string) error {
	return &Error{Kind: ErrServer, Step: step, Msg: msg}
}

func InvalidStateError(msg string) error {
	return &Error{Kind: ErrInvalidState, Msg: msg}
}

// WithStep returns err attributed to step, if it is an *Error without one.
func WithStep(err error, step steps.Id) error {
	var e *Error
	if errors.As(err, &e) && e.Step == "" {
		cp := *e
		cp.Step = step
		return &cp
	}
	return err
}

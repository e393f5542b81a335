package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateKind is returned when a blackboard value of a kind is set
// while a value of that kind already exists.
var ErrDuplicateKind = errors.New("duplicate kind")

// ErrKindNotFound is returned when a kind is looked up but absent.
var ErrKindNotFound = errors.New("kind not found")

// InvalidOperationError indicates an operation that is illegal in the
// engine's current lifecycle phase (force-reset while processing, restore
// from an unstarted source, restore-state after start). It is reported
// synchronously to the caller, never converted to an error event.
type InvalidOperationError struct {
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation %s: %s", e.Op, e.Reason)
}

// HandlerStage names where inside the machine a handler failure surfaced.
type HandlerStage string

const (
	StageInput HandlerStage = "input"
	StageEnter HandlerStage = "enter"
	StageExit  HandlerStage = "exit"
)

// HandlerError wraps any failure raised inside an input handler or a
// lifecycle callback. It is always caught at the point of invocation and
// delivered as an error event; it never unwinds past the engine boundary.
type HandlerError struct {
	StateKind Kind
	InputKind Kind
	Stage     HandlerStage
	Err       error
}

func (e *HandlerError) Error() string {
	if e.InputKind != nil {
		return fmt.Sprintf("%s handler failed in state %s for input %s: %v",
			e.Stage, KindName(e.StateKind), KindName(e.InputKind), e.Err)
	}
	return fmt.Sprintf("%s handler failed in state %s: %v",
		e.Stage, KindName(e.StateKind), e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsInvalidOperation reports whether err is an InvalidOperationError.
func IsInvalidOperation(err error) bool {
	var e *InvalidOperationError
	return errors.As(err, &e)
}

// AsHandlerError attempts to convert err to a *HandlerError.
func AsHandlerError(err error) (*HandlerError, bool) {
	var e *HandlerError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

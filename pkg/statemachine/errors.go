package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: state and event are required")
)

// NoTransitionError is returned by Next when the table has no transition for
// the state and event.
type NoTransitionError struct {
	From  string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition from %q on %q", e.From, e.Event)
}

// RejectedError is returned by Next when transitions exist but every one was
// vetoed by a guard.
type RejectedError struct {
	From  string
	Event string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("guards rejected %q from %q", e.Event, e.From)
}

// IsTransitionRejectedError reports whether err is or wraps a RejectedError.
func IsTransitionRejectedError(err error) bool {
	var e *RejectedError
	return errors.As(err, &e)
}

package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition matches any refused transition
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed matches a transition that exists but whose guards all failed
	ErrGuardFailed = errors.New("guard condition failed")
)

// TransitionError reports a trigger the lifecycle refused
type TransitionError struct {
	From    State
	Trigger Trigger
	Guarded bool
}

func (e *TransitionError) Error() string {
	if e.Guarded {
		return fmt.Sprintf("no guard admits %s from %s", e.Trigger, e.From)
	}
	return fmt.Sprintf("cannot %s from %s", e.Trigger, e.From)
}

// Is matches ErrInvalidTransition always and ErrGuardFailed for guarded refusals
func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrInvalidTransition:
		return true
	case ErrGuardFailed:
		return e.Guarded
	}
	return false
}

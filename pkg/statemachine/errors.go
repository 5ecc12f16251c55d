package statemachine

import "errors"

var (
	// ErrInvalidTransition indicates a transition with an empty state or event.
	ErrInvalidTransition = errors.New("statemachine: invalid transition")

	// ErrConflictingTransition indicates two transitions registered for the
	// same from-state and event with different targets.
	ErrConflictingTransition = errors.New("statemachine: conflicting transition")
)

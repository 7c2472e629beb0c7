package lifecycle

import "errors"

// Error classes for lifecycle transitions. Handlers translate these into
// HTTP responses; wrap with fmt.Errorf("...: %w", Err...) to add context.
var (
	// ErrNotFound: the referenced assignment, evidence, or user is absent.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: the actor's role or ownership does not permit the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict: the assignment's state forbids the action, or a
	// concurrent writer changed it mid-transition.
	ErrConflict = errors.New("conflict")
	// ErrValidation: the request payload is malformed.
	ErrValidation = errors.New("validation")
)

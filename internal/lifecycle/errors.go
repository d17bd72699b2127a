package lifecycle

import "errors"

// Sentinel errors classifying why a transition was refused. Handlers map
// these onto HTTP statuses; wrap with fmt.Errorf("%w: ...") for detail.
var (
	// ErrNotFound means no order matched the id within the caller's scope.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden means the actor's role or ownership does not permit the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition means the guard failed against the current stored state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation means the request itself was malformed or incomplete.
	ErrValidation = errors.New("validation failed")
)

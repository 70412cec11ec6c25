package board

import "fmt"

// ValidationError indicates bad caller input: an unknown signal type or an
// empty required field. The caller must fix the request; retrying unchanged
// will fail the same way.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AlreadyResolvedError indicates an attempt to amplify a signal that has
// already been resolved or archived. Terminated signals never re-enter the
// active set.
type AlreadyResolvedError struct {
	ID string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("signal already terminated: %s", e.ID)
}

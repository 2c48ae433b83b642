package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvariantError is raised (as a panic) when the change-set discipline was broken:
// an edge removed twice, a dependency registered twice, and similar.
// These are bugs, never user errors; the service recovers them at the batch boundary.
type InvariantError struct {
	Message string
}

func (e InvariantError) Error() string {
	return "invariant violation: " + e.Message
}

func invariant(format string, args ...any) {
	panic(errors.WithStack(InvariantError{Message: fmt.Sprintf(format, args...)}))
}

// AsInvariantError unwraps a recovered panic value into an InvariantError
func AsInvariantError(recovered any) (InvariantError, bool) {
	err, ok := recovered.(error)
	if !ok {
		return InvariantError{}, false
	}
	var inv InvariantError
	if errors.As(err, &inv) {
		return inv, true
	}
	return InvariantError{}, false
}

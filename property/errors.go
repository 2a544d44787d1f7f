package property

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals the listing does not exist.
	ErrNotFound = errors.New("property: not found")
	// ErrConcurrentModification signals the optimistic status check lost a
	// race; the caller should re-fetch and retry.
	ErrConcurrentModification = errors.New("property: concurrent modification")
)

// InvalidTransitionError reports a lifecycle transition outside the table.
// The listing is left unmodified.
type InvalidTransitionError struct {
	From      Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("property: invalid transition %s -> %s", e.From, e.Requested)
}

package timesheet

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound    = errors.New("time entry not found")
	ErrEntryResolved    = errors.New("time entry already resolved")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrLadderNotFound   = errors.New("ladder not found")

	// ErrSessionMismatch is returned when a session's total does not match
	// the entry it is being committed against.
	ErrSessionMismatch = errors.New("session does not match time entry")
)

// PersistenceError wraps a store failure during a commit. The session that
// produced it is still editable and can be committed again.
type PersistenceError struct {
	EntryID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("recording entry %s: %v", e.EntryID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true for any missing timesheet record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrLadderNotFound)
}

package ladder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLadder is matched by every InvalidLadderError.
	ErrInvalidLadder = errors.New("invalid ladder")

	// ErrNegativeHours is returned when accumulated hours are below zero.
	ErrNegativeHours = errors.New("accumulated hours must not be negative")
)

// InvalidLadderError reports an empty or malformed level list. It is a
// configuration defect and is never retried.
type InvalidLadderError struct {
	LadderID string
	Level    int // 0 when the problem is not tied to one level
	Reason   string
}

func (e *InvalidLadderError) Error() string {
	msg := "invalid ladder"
	if e.LadderID != "" {
		msg += " " + e.LadderID
	}
	if e.Level != 0 {
		return fmt.Sprintf("%s: level %d: %s", msg, e.Level, e.Reason)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

func (e *InvalidLadderError) Unwrap() error {
	return ErrInvalidLadder
}

func asInvalid(err error, target **InvalidLadderError) bool {
	return err != nil && errors.As(err, target)
}

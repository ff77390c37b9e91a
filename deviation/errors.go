package deviation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOutOfRange is returned when a bucket value is outside [0, magnitude].
	ErrOutOfRange = errors.New("bucket value out of range")

	// ErrIncompleteDistribution is returned when committing with minutes unassigned.
	ErrIncompleteDistribution = errors.New("distribution incomplete")

	// ErrSessionCommitted is returned by any mutation or commit after a successful commit.
	ErrSessionCommitted = errors.New("session already committed")

	// ErrUnknownCategory is returned for category keys outside the declared set.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidBorrowOrder is returned when a borrow order is not a permutation of all categories.
	ErrInvalidBorrowOrder = errors.New("borrow order must list every category once")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OutOfRangeError rejects a SetBucket value. The session is left untouched.
type OutOfRangeError struct {
	Category  Category
	Value     int
	Magnitude int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %d minutes is outside [0, %d]", e.Category, e.Value, e.Magnitude)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

// IncompleteDistributionError blocks a commit while minutes are unassigned.
type IncompleteDistributionError struct {
	Remaining int
}

func (e *IncompleteDistributionError) Error() string {
	return fmt.Sprintf("%d minutes still unassigned", e.Remaining)
}

func (e *IncompleteDistributionError) Unwrap() error {
	return ErrIncompleteDistribution
}

// IsClientError returns true if the operator can fix the error by editing the session.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrIncompleteDistribution) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrInvalidBorrowOrder)
}

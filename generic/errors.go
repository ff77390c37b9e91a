/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine-level error types in one place for consistency and discoverability.
  Domain packages (deviation, ladder, timesheet) define their own errors and
  may wrap these.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Amount errors - Summing accounts kept in different units

USAGE:
  if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
      // already recorded, a retry or double click
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - store.go: Uses these errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnitMismatch is returned when amounts of different units are summed.
	ErrUnitMismatch = errors.New("unit mismatch")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnitMismatchError reports a transaction whose unit differs from the account's.
type UnitMismatchError struct {
	TransactionID TransactionID
	Expected      Unit
	Got           Unit
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("transaction %s: expected unit %s, got %s", e.TransactionID, e.Expected, e.Got)
}

func (e *UnitMismatchError) Unwrap() error {
	return ErrUnitMismatch
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrUnitMismatch)
}

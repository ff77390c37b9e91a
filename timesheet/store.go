package timesheet

import (
	"context"
	"time"

	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/ladder"
)

// =============================================================================
// STORE - Persistence the timesheet services depend on
// =============================================================================

// Store is the ledger plus the records around it. Getters return (nil, nil)
// when the record does not exist.
type Store interface {
	generic.Store

	GetEmployee(ctx context.Context, id string) (*Employee, error)
	GetTimeEntry(ctx context.Context, id string) (*TimeEntry, error)
	SaveTimeEntry(ctx context.Context, entry TimeEntry) error
	ListTimeEntries(ctx context.Context, employeeID string) ([]TimeEntry, error)
	GetLadder(ctx context.Context, id string) (*ladder.Ladder, error)

	// WithEntryTx runs fn in one database transaction. Ledger appends and the
	// entry status change commit together or not at all.
	WithEntryTx(ctx context.Context, fn func(EntryTx) error) error
}

// EntryTx is the write side available inside WithEntryTx.
type EntryTx interface {
	AppendBatch(ctx context.Context, txs []generic.Transaction) error

	// MarkResolved moves a pending entry to resolved. It returns
	// ErrEntryResolved if the entry was resolved concurrently.
	MarkResolved(ctx context.Context, entryID, resolvedBy string, at time.Time, notes string) error
}

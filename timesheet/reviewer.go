/*
reviewer.go - Deviation review of time entries

PURPOSE:
  Bridges a pending time entry and the deviation allocator. Open seeds a
  session from the entry; the Recorder books a committed session into the
  ledger and marks the entry resolved in the same database transaction.

LEDGER MAPPING:
  One transaction per non-empty bucket:

    Type:           deviation
    ResourceType:   the category (time_bank, overtime_tier1, ...)
    Delta:          signed minutes
    ReferenceID:    time entry ID
    IdempotencyKey: "<entry>:<category>"

  The idempotency key makes a second commit for the same entry fail even
  if two operators reviewed it at the same time.
*/
package timesheet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/generic"
)

// Reviewer opens and resolves deviation sessions for time entries.
type Reviewer struct {
	store Store
	now   func() time.Time
}

func NewReviewer(store Store) *Reviewer {
	return &Reviewer{store: store, now: time.Now}
}

// Open loads a pending entry and seeds a session with its deviation.
func (r *Reviewer) Open(ctx context.Context, entryID string, opts ...deviation.Option) (*TimeEntry, *deviation.Session, error) {
	entry, err := r.pendingEntry(ctx, entryID)
	if err != nil {
		return nil, nil, err
	}
	session, err := deviation.NewSession(entry.DeviationMinutes(), opts...)
	if err != nil {
		return nil, nil, err
	}
	return entry, session, nil
}

// Resolve commits session against the entry. Errors from the commit gate
// and from persistence are returned as-is; on failure the session stays
// editable.
func (r *Reviewer) Resolve(ctx context.Context, entryID string, session *deviation.Session, actor, notes string) (deviation.CommitResult, error) {
	entry, err := r.pendingEntry(ctx, entryID)
	if err != nil {
		return deviation.CommitResult{}, err
	}
	if session.TotalMinutes != entry.DeviationMinutes() {
		return deviation.CommitResult{}, fmt.Errorf("%w: session has %d minutes, entry %s has %d",
			ErrSessionMismatch, session.TotalMinutes, entry.ID, entry.DeviationMinutes())
	}
	return session.Commit(ctx, r.Recorder(*entry, actor), notes)
}

// Recorder returns the ledger recorder for one entry.
func (r *Reviewer) Recorder(entry TimeEntry, actor string) deviation.Recorder {
	return deviation.RecorderFunc(func(ctx context.Context, rec deviation.CommitRecord) error {
		txs := r.transactionsFor(entry, actor, rec)
		err := r.store.WithEntryTx(ctx, func(tx EntryTx) error {
			if len(txs) > 0 {
				if err := tx.AppendBatch(ctx, txs); err != nil {
					return err
				}
			}
			return tx.MarkResolved(ctx, entry.ID, actor, r.now().UTC(), rec.Notes)
		})
		if err != nil {
			return &PersistenceError{EntryID: entry.ID, Err: err}
		}
		return nil
	})
}

func (r *Reviewer) transactionsFor(entry TimeEntry, actor string, rec deviation.CommitRecord) []generic.Transaction {
	createdAt := generic.At(r.now())
	txs := make([]generic.Transaction, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		txs = append(txs, generic.Transaction{
			ID:             generic.TransactionID(uuid.NewString()),
			EntityID:       entry.EmployeeID,
			ResourceType:   e.Category,
			EffectiveAt:    generic.At(entry.ActualStart),
			Delta:          generic.NewAmountFromInt(e.Minutes, generic.UnitMinutes),
			Type:           generic.TxDeviation,
			ReferenceID:    entry.ID,
			Reason:         rec.Summary,
			IdempotencyKey: IdempotencyKey(entry.ID, e.Category),
			Metadata: map[string]string{
				"notes":         rec.Notes,
				"total_minutes": fmt.Sprint(rec.TotalMinutes),
			},
			CreatedBy:     actor,
			CreatedByType: "operator",
			CreatedAt:     createdAt,
		})
	}
	return txs
}

func (r *Reviewer) pendingEntry(ctx context.Context, entryID string) (*TimeEntry, error) {
	entry, err := r.store.GetTimeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	if entry.IsResolved() {
		return nil, fmt.Errorf("%w: %s", ErrEntryResolved, entryID)
	}
	return entry, nil
}

// IdempotencyKey is the ledger key of one category booking for an entry.
func IdempotencyKey(entryID string, c deviation.Category) string {
	return entryID + ":" + c.String()
}

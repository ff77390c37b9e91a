/*
deviation.go - Deviation session handlers

PURPOSE:
  Drives a deviation session over HTTP. The session is stored between
  requests in a sessions.Store; edits to one session are serialized with a
  per-session lock so concurrent requests cannot interleave.

ENDPOINTS:
  POST /api/time-entries/{id}/deviation        Open a session for a pending entry
  GET  /api/deviation/{sid}                    Current distribution
  PUT  /api/deviation/{sid}/buckets/{category} Set one bucket {"minutes": n}
  POST /api/deviation/{sid}/assign/{category}  Put the whole deviation in one bucket
  POST /api/deviation/{sid}/reset              Back to the default distribution
  POST /api/deviation/{sid}/commit             Book into the ledger, resolve the entry

COMMIT:
  A committed session is kept (state "committed") until its TTL so further
  edits answer 409 instead of 404. A failed commit is saved back in the
  "editing" state and can be retried.

SEE ALSO:
  - deviation/session.go: the allocator
  - timesheet/reviewer.go: ledger recorder
*/
package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/store/sessions"
	"github.com/warp/workforce-engine/timesheet"
)

// OpenSession seeds a session from a pending time entry.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := h.decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var opts []deviation.Option
	if len(req.BorrowOrder) > 0 {
		order := make([]deviation.Category, 0, len(req.BorrowOrder))
		for _, key := range req.BorrowOrder {
			c, err := deviation.ParseCategory(key)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			order = append(order, c)
		}
		opts = append(opts, deviation.WithBorrowOrder(order...))
	}

	entry, session, err := h.Reviewer.Open(r.Context(), chi.URLParam(r, "id"), opts...)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec := sessions.Record{
		ID:         uuid.NewString(),
		EntryID:    entry.ID,
		EmployeeID: entry.EmployeeID,
		Actor:      req.Actor,
		OpenedAt:   h.now().UTC(),
		Session:    session,
	}
	if err := h.Sessions.Save(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store session", err)
		return
	}
	h.Metrics.SessionsOpened.Inc()
	writeJSON(w, http.StatusCreated, toSessionDTO(rec))
}

// GetSession returns the current distribution.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Sessions.Load(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*rec))
}

// SetBucket sets one category to an absolute value, borrowing from the
// other buckets when the unassigned minutes are not enough.
func (h *Handler) SetBucket(w http.ResponseWriter, r *http.Request) {
	c, err := deviation.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req SetBucketRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.editSession(w, r, func(s *deviation.Session) error {
		return s.SetBucket(c, *req.Minutes)
	})
}

// AssignAll moves the whole deviation into one category.
func (h *Handler) AssignAll(w http.ResponseWriter, r *http.Request) {
	c, err := deviation.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.editSession(w, r, func(s *deviation.Session) error {
		return s.QuickAssignAll(c)
	})
}

// ResetSession restores the default distribution.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.editSession(w, r, func(s *deviation.Session) error {
		return s.ResetToDefault()
	})
}

// CommitSession books the distribution and resolves the time entry.
func (h *Handler) CommitSession(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sid := chi.URLParam(r, "sid")
	unlock := h.locks.Lock(sid)
	defer unlock()

	ctx := r.Context()
	rec, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rec.Session.Committed() {
		h.Metrics.recordCommit("conflict", nil)
		writeDomainError(w, deviation.ErrSessionCommitted)
		return
	}

	result, err := h.Reviewer.Resolve(ctx, rec.EntryID, rec.Session, req.Actor, req.Notes)
	if err != nil {
		h.saveAfterFailedCommit(ctx, *rec)
		h.Metrics.recordCommit(commitOutcome(err), nil)
		writeDomainError(w, err)
		return
	}

	if rec.Actor == "" {
		rec.Actor = req.Actor
	}
	if err := h.Sessions.Save(ctx, *rec); err != nil {
		log.Printf("[Deviation] session %s committed but not saved: %v", sid, err)
	}
	h.Metrics.recordCommit("committed", result.Entries)

	entry, err := h.Store.GetTimeEntry(ctx, rec.EntryID)
	if err != nil || entry == nil {
		writeError(w, http.StatusInternalServerError, "Committed, but failed to reload time entry", err)
		return
	}
	writeJSON(w, http.StatusOK, CommitResponse{
		Result: result,
		Entry:  toTimeEntryDTO(*entry),
	})
}

// editSession loads a session under its lock, applies edit and saves it.
// A rejected edit leaves the stored session untouched.
func (h *Handler) editSession(w http.ResponseWriter, r *http.Request, edit func(*deviation.Session) error) {
	sid := chi.URLParam(r, "sid")
	unlock := h.locks.Lock(sid)
	defer unlock()

	ctx := r.Context()
	rec, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := edit(rec.Session); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Sessions.Save(ctx, *rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*rec))
}

func (h *Handler) saveAfterFailedCommit(ctx context.Context, rec sessions.Record) {
	if rec.Session.Committed() {
		return
	}
	if err := h.Sessions.Save(ctx, rec); err != nil {
		log.Printf("[Deviation] failed to save session %s after failed commit: %v", rec.ID, err)
	}
}

func commitOutcome(err error) string {
	var persist *timesheet.PersistenceError
	switch {
	case errors.Is(err, deviation.ErrIncompleteDistribution):
		return "incomplete"
	case errors.Is(err, timesheet.ErrEntryResolved),
		errors.Is(err, deviation.ErrSessionCommitted),
		errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return "conflict"
	case errors.As(err, &persist):
		return "persistence_error"
	default:
		return "rejected"
	}
}

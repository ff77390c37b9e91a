/*
Package sessions stores deviation sessions while an operator edits them.

PURPOSE:
  The HTTP API is stateless between requests, so an open deviation session
  lives here from Open until Commit. Sessions are short-lived: they expire
  after a TTL. A committed session is kept until then so late edits can be
  told apart from unknown IDs.

IMPLEMENTATIONS:
  Memory: Process-local map, for tests and single-instance deployments
  Redis:  go-redis/v9, JSON values with a TTL, shared between instances

Values are stored as JSON in both implementations so a loaded record never
aliases the caller's copy.
*/
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/generic"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("deviation session not found")

// DefaultTTL bounds how long an abandoned session is kept.
const DefaultTTL = 2 * time.Hour

// Record is one open review.
type Record struct {
	ID         string             `json:"id"`
	EntryID    string             `json:"entry_id"`
	EmployeeID generic.EntityID   `json:"employee_id"`
	Actor      string             `json:"actor,omitempty"`
	OpenedAt   time.Time          `json:"opened_at"`
	Session    *deviation.Session `json:"session"`
}

// Store persists open sessions.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags and are checked by
  decodeAndValidate before any domain call. Domain rules (bucket ranges,
  ladder shape) are enforced by the domain packages themselves.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ladder.go: LadderJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/ladder"
	"github.com/warp/workforce-engine/store/sessions"
	"github.com/warp/workforce-engine/timesheet"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	HireDate      string          `json:"hire_date"`
	StartingHours decimal.Decimal `json:"starting_hours"`
	LadderID      string          `json:"ladder_id,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID            string           `json:"id" validate:"omitempty,max=64"`
	Name          string           `json:"name" validate:"required,max=200"`
	Email         string           `json:"email" validate:"omitempty,email"`
	HireDate      string           `json:"hire_date" validate:"required,datetime=2006-01-02"`
	StartingHours *decimal.Decimal `json:"starting_hours"`
	LadderID      string           `json:"ladder_id" validate:"omitempty,max=64"`
}

func toEmployeeDTO(e timesheet.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		Email:         e.Email,
		HireDate:      e.HireDate.Format("2006-01-02"),
		StartingHours: e.StartingHours,
		LadderID:      e.LadderID,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

// CreateTimeEntryRequest records a shift. Times are RFC3339.
type CreateTimeEntryRequest struct {
	ID                  string    `json:"id" validate:"omitempty,max=64"`
	EmployeeID          string    `json:"employee_id" validate:"required"`
	PlannedStart        time.Time `json:"planned_start" validate:"required"`
	PlannedEnd          time.Time `json:"planned_end" validate:"required,gtfield=PlannedStart"`
	PlannedBreakMinutes int       `json:"planned_break_minutes" validate:"gte=0"`
	ActualStart         time.Time `json:"actual_start" validate:"required"`
	ActualEnd           time.Time `json:"actual_end" validate:"required,gtfield=ActualStart"`
	ActualBreakMinutes  int       `json:"actual_break_minutes" validate:"gte=0"`
}

// TimeEntryDTO is a time entry with its computed minutes.
type TimeEntryDTO struct {
	timesheet.TimeEntry
	PlannedMinutes   int `json:"planned_minutes"`
	WorkedMinutes    int `json:"worked_minutes"`
	DeviationMinutes int `json:"deviation_minutes"`
}

func toTimeEntryDTO(e timesheet.TimeEntry) TimeEntryDTO {
	return TimeEntryDTO{
		TimeEntry:        e,
		PlannedMinutes:   e.PlannedMinutes(),
		WorkedMinutes:    e.WorkedMinutes(),
		DeviationMinutes: e.DeviationMinutes(),
	}
}

// =============================================================================
// DEVIATION SESSIONS
// =============================================================================

// OpenSessionRequest opens a review. The body is optional.
type OpenSessionRequest struct {
	Actor       string   `json:"actor" validate:"omitempty,max=100"`
	BorrowOrder []string `json:"borrow_order" validate:"omitempty,unique,dive,required"`
}

// SetBucketRequest sets one bucket to an absolute number of minutes.
type SetBucketRequest struct {
	Minutes *int `json:"minutes" validate:"required"`
}

// CommitRequest finalizes a session.
type CommitRequest struct {
	Actor string `json:"actor" validate:"required,max=100"`
	Notes string `json:"notes" validate:"max=2000"`
}

// SessionDTO is the editable state shown to the operator.
type SessionDTO struct {
	ID               string                 `json:"id"`
	EntryID          string                 `json:"entry_id"`
	EmployeeID       string                 `json:"employee_id"`
	OpenedAt         string                 `json:"opened_at"`
	TotalMinutes     int                    `json:"total_minutes"`
	Magnitude        int                    `json:"magnitude"`
	Remaining        int                    `json:"remaining"`
	FullyDistributed bool                   `json:"fully_distributed"`
	State            deviation.State        `json:"state"`
	Buckets          deviation.Distribution `json:"buckets"`
	BorrowOrder      []deviation.Category   `json:"borrow_order"`
	Summary          string                 `json:"summary"`
}

func toSessionDTO(rec sessions.Record) SessionDTO {
	s := rec.Session
	return SessionDTO{
		ID:               rec.ID,
		EntryID:          rec.EntryID,
		EmployeeID:       string(rec.EmployeeID),
		OpenedAt:         rec.OpenedAt.Format(time.RFC3339),
		TotalMinutes:     s.TotalMinutes,
		Magnitude:        s.Magnitude(),
		Remaining:        s.Remaining(),
		FullyDistributed: s.IsFullyDistributed(),
		State:            s.State,
		Buckets:          s.Buckets,
		BorrowOrder:      s.BorrowOrder,
		Summary:          s.Summary(),
	}
}

// CommitResponse confirms a resolved entry.
type CommitResponse struct {
	Result deviation.CommitResult `json:"result"`
	Entry  TimeEntryDTO           `json:"entry"`
}

// =============================================================================
// LADDERS
// =============================================================================

// ResolveLadderRequest asks for the level at a number of hours.
type ResolveLadderRequest struct {
	Hours *decimal.Decimal `json:"hours" validate:"required"`
}

// ResolveLadderResponse echoes the input with the resolved position.
type ResolveLadderResponse struct {
	LadderID string          `json:"ladder_id"`
	Hours    decimal.Decimal `json:"hours"`
	ladder.Progress
}

// =============================================================================
// LEDGER
// =============================================================================

// TransactionDTO represents a ledger booking in API responses.
type TransactionDTO struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Label          string `json:"label"`
	EffectiveAt    string `json:"effective_at"`
	Minutes        string `json:"minutes"`
	Type           string `json:"type"`
	ReferenceID    string `json:"reference_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             string(tx.ID),
		Category:       tx.ResourceType.ResourceID(),
		Label:          tx.ResourceType.ResourceID(),
		EffectiveAt:    tx.EffectiveAt.Time.Format(time.RFC3339),
		Minutes:        tx.Delta.Value.String(),
		Type:           string(tx.Type),
		ReferenceID:    tx.ReferenceID,
		Reason:         tx.Reason,
		IdempotencyKey: tx.IdempotencyKey,
		Notes:          tx.Metadata["notes"],
		CreatedBy:      tx.CreatedBy,
	}
	if c, err := deviation.ParseCategory(dto.Category); err == nil {
		dto.Label = c.Label()
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Time.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

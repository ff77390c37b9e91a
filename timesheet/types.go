/*
Package timesheet connects recorded working time to the deviation allocator
and the wage ladder.

PURPOSE:
  A time entry records planned and actual working time for one shift. The
  difference between the two is a deviation that an operator distributes
  across booking categories before the entry counts as resolved. Resolved
  entries also add to the employee's accumulated hours, which place them
  on a wage ladder.

KEY CONCEPTS:
  TimeEntry: Planned vs actual working time of one shift
  Reviewer:  Opens deviation sessions and records their commits
  Tenure:    Accumulated hours and ladder position of an employee

FLOW:
  entry (pending)
    → Reviewer.Open      deviation.Session seeded from DeviationMinutes()
    → Session edits      (operator)
    → Reviewer.Resolve   Session.Commit → Recorder → ledger + entry resolved

SEE ALSO:
  - deviation/session.go: Allocation rules and commit gate
  - ladder/ladder.go: Level resolution
  - store/sqlstore: Store implementation
*/
package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// TIME ENTRY
// =============================================================================

type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusResolved EntryStatus = "resolved"
)

// TimeEntry is one shift with its plan and what actually happened.
type TimeEntry struct {
	ID                  string           `json:"id"`
	EmployeeID          generic.EntityID `json:"employee_id"`
	PlannedStart        time.Time        `json:"planned_start"`
	PlannedEnd          time.Time        `json:"planned_end"`
	PlannedBreakMinutes int              `json:"planned_break_minutes"`
	ActualStart         time.Time        `json:"actual_start"`
	ActualEnd           time.Time        `json:"actual_end"`
	ActualBreakMinutes  int              `json:"actual_break_minutes"`
	Status              EntryStatus      `json:"status"`
	ResolvedBy          string           `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time       `json:"resolved_at,omitempty"`
	Notes               string           `json:"notes,omitempty"`
}

// PlannedMinutes is the planned span minus the planned break.
func (e TimeEntry) PlannedMinutes() int {
	return generic.MinutesBetween(e.PlannedStart, e.PlannedEnd) - e.PlannedBreakMinutes
}

// WorkedMinutes is the actual span minus the actual break, never negative.
func (e TimeEntry) WorkedMinutes() int {
	worked := generic.MinutesBetween(e.ActualStart, e.ActualEnd) - e.ActualBreakMinutes
	if worked < 0 {
		return 0
	}
	return worked
}

// DeviationMinutes is worked minus planned. Positive means the employee
// stayed longer than planned.
func (e TimeEntry) DeviationMinutes() int {
	return e.WorkedMinutes() - e.PlannedMinutes()
}

// IsResolved reports whether the deviation has been committed.
func (e TimeEntry) IsResolved() bool { return e.Status == StatusResolved }

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is the ledger entity. StartingHours are hours credited before the
// first recorded entry, e.g. experience from a previous employer.
type Employee struct {
	ID            generic.EntityID `json:"id"`
	Name          string           `json:"name"`
	Email         string           `json:"email,omitempty"`
	HireDate      time.Time        `json:"hire_date"`
	StartingHours decimal.Decimal  `json:"starting_hours"`
	LadderID      string           `json:"ladder_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

package timesheet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/ladder"
)

// =============================================================================
// TENURE - Accumulated hours and ladder position
// =============================================================================

// Tenure computes ladder progress from resolved entries.
type Tenure struct {
	store Store
}

func NewTenure(store Store) *Tenure {
	return &Tenure{store: store}
}

// TenureReport is an employee's position on one ladder.
type TenureReport struct {
	EmployeeID       generic.EntityID `json:"employee_id"`
	LadderID         string           `json:"ladder_id"`
	AccumulatedHours decimal.Decimal  `json:"accumulated_hours"`
	Progress         ladder.Progress  `json:"progress"`
}

// AccumulatedHours is the employee's starting hours plus the worked time of
// every resolved entry. Pending entries do not count yet.
func (t *Tenure) AccumulatedHours(ctx context.Context, employeeID string) (decimal.Decimal, error) {
	emp, err := t.employee(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	return t.accumulated(ctx, emp)
}

func (t *Tenure) accumulated(ctx context.Context, emp *Employee) (decimal.Decimal, error) {
	entries, err := t.store.ListTimeEntries(ctx, string(emp.ID))
	if err != nil {
		return decimal.Zero, err
	}
	minutes := int64(0)
	for _, e := range entries {
		if e.IsResolved() {
			minutes += int64(e.WorkedMinutes())
		}
	}
	worked := generic.NewAmountFromInt(int(minutes), generic.UnitMinutes).InHours()
	return emp.StartingHours.Add(worked.Value), nil
}

// Progress resolves the employee on ladderID. An empty ladderID uses the
// employee's assigned ladder.
func (t *Tenure) Progress(ctx context.Context, employeeID, ladderID string) (TenureReport, error) {
	emp, err := t.employee(ctx, employeeID)
	if err != nil {
		return TenureReport{}, err
	}
	if ladderID == "" {
		ladderID = emp.LadderID
	}
	l, err := t.store.GetLadder(ctx, ladderID)
	if err != nil {
		return TenureReport{}, err
	}
	if l == nil {
		return TenureReport{}, fmt.Errorf("%w: %q", ErrLadderNotFound, ladderID)
	}

	hours, err := t.accumulated(ctx, emp)
	if err != nil {
		return TenureReport{}, err
	}
	progress, err := l.Resolve(hours)
	if err != nil {
		return TenureReport{}, err
	}
	return TenureReport{
		EmployeeID:       emp.ID,
		LadderID:         l.ID,
		AccumulatedHours: hours,
		Progress:         progress,
	}, nil
}

func (t *Tenure) employee(ctx context.Context, employeeID string) (*Employee, error) {
	emp, err := t.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, employeeID)
	}
	return emp, nil
}

// =============================================================================
// BALANCES - Signed minutes per category
// =============================================================================

// CategoryBalance is the ledger total of one deviation category.
type CategoryBalance struct {
	Category deviation.Category `json:"category"`
	Minutes  decimal.Decimal    `json:"minutes"`
	Hours    decimal.Decimal    `json:"hours"`
	Entries  int                `json:"entries"`
}

// Balances returns every category in declared order, zeros included.
func (t *Tenure) Balances(ctx context.Context, employeeID string, at generic.TimePoint) ([]CategoryBalance, error) {
	if _, err := t.employee(ctx, employeeID); err != nil {
		return nil, err
	}
	accounts, err := generic.NewLedger(t.store).Balances(ctx, generic.EntityID(employeeID), at, generic.UnitMinutes)
	if err != nil {
		return nil, err
	}

	out := make([]CategoryBalance, 0, len(deviation.Categories()))
	for _, c := range deviation.Categories() {
		b := CategoryBalance{Category: c, Minutes: decimal.Zero, Hours: decimal.Zero}
		if acc, ok := accounts[c.ResourceID()]; ok {
			b.Minutes = acc.Balance.Value
			b.Hours = acc.Balance.InHours().Value
			b.Entries = acc.Entries
		}
		out = append(out, b)
	}
	return out, nil
}

/*
Package ladder resolves an employee's wage level from accumulated hours.

PURPOSE:
  A wage ladder is a list of levels, each covering a band of accumulated
  working hours and carrying an hourly rate. Given the hours an employee has
  built up, Resolve answers "which level am I on, what do I earn, and how
  far is the next step?"

LEVEL BANDS:
  Each level covers [MinHours, MaxHours). The terminal level has no
  MaxHours and matches everything at or above its MinHours.

    level 1: [0, 500)     200.00/h
    level 2: [500, 1000)  210.00/h
    level 3: [1000, ∞)    225.00/h

    750 hours → level 2, next level 3 in 250 hours

GAPS:
  Ladders edited by hand can have gaps between bands. Resolve does not fail
  on them: when no band contains the hours it picks the highest level whose
  MinHours has been reached. Validate is the strict check used when a ladder
  is created.

SEE ALSO:
  - errors.go: InvalidLadderError
  - factory/ladder.go: JSON/YAML ladder definitions
  - timesheet/tenure.go: Supplies accumulated hours from resolved entries
*/
package ladder

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TYPES
// =============================================================================

// Level is one step of a wage ladder.
type Level struct {
	Level      int              `json:"level"`
	MinHours   decimal.Decimal  `json:"min_hours"`
	MaxHours   *decimal.Decimal `json:"max_hours,omitempty"` // nil = terminal level
	HourlyRate decimal.Decimal  `json:"hourly_rate"`
}

// IsTerminal reports whether the level has no upper bound.
func (l Level) IsTerminal() bool { return l.MaxHours == nil }

// Contains reports whether hours fall in [MinHours, MaxHours).
func (l Level) Contains(hours decimal.Decimal) bool {
	if hours.LessThan(l.MinHours) {
		return false
	}
	return l.MaxHours == nil || hours.LessThan(*l.MaxHours)
}

// Ladder is a named set of levels.
type Ladder struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Levels []Level `json:"levels"`
}

// Progress is the computed position of an employee on a ladder.
// The Next* fields are nil on the terminal level.
type Progress struct {
	Level            int              `json:"level"`
	HourlyRate       decimal.Decimal  `json:"hourly_rate"`
	NextLevel        *int             `json:"next_level"`
	NextHourlyRate   *decimal.Decimal `json:"next_hourly_rate"`
	HoursToNextLevel *decimal.Decimal `json:"hours_to_next_level"`
}

// AtTerminal reports whether there is no further level.
func (p Progress) AtTerminal() bool { return p.NextLevel == nil }

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve finds the level for accumulatedHours.
//
// The input slice is not modified. Levels need not be sorted.
func Resolve(levels []Level, accumulatedHours decimal.Decimal) (Progress, error) {
	if accumulatedHours.IsNegative() {
		return Progress{}, fmt.Errorf("%w: %s", ErrNegativeHours, accumulatedHours)
	}
	if err := checkShape(levels); err != nil {
		return Progress{}, err
	}

	sorted := sortedCopy(levels)

	current := -1
	for i, l := range sorted {
		if l.Contains(accumulatedHours) {
			current = i
			break
		}
	}
	if current < 0 {
		// gap in the bands: highest level already reached
		for i, l := range sorted {
			if l.MinHours.LessThanOrEqual(accumulatedHours) {
				current = i
			}
		}
	}
	if current < 0 {
		// below every band
		current = 0
	}

	cur := sorted[current]
	progress := Progress{
		Level:      cur.Level,
		HourlyRate: cur.HourlyRate,
	}

	if current+1 < len(sorted) && sorted[current+1].Level == cur.Level+1 {
		next := sorted[current+1]
		nextLevel := next.Level
		nextRate := next.HourlyRate
		remaining := next.MinHours.Sub(accumulatedHours)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		progress.NextLevel = &nextLevel
		progress.NextHourlyRate = &nextRate
		progress.HoursToNextLevel = &remaining
	}

	return progress, nil
}

// Resolve resolves hours against the ladder's levels.
func (l Ladder) Resolve(accumulatedHours decimal.Decimal) (Progress, error) {
	p, err := Resolve(l.Levels, accumulatedHours)
	if err != nil {
		var invalid *InvalidLadderError
		if asInvalid(err, &invalid) && invalid.LadderID == "" {
			invalid.LadderID = l.ID
		}
	}
	return p, err
}

// =============================================================================
// VALIDATION
// =============================================================================

// checkShape rejects level lists that make a resolution ambiguous.
func checkShape(levels []Level) error {
	if len(levels) == 0 {
		return &InvalidLadderError{Reason: "ladder has no levels"}
	}
	seen := make(map[int]bool, len(levels))
	for _, l := range levels {
		if l.Level <= 0 {
			return &InvalidLadderError{Level: l.Level, Reason: "level numbers must be positive"}
		}
		if seen[l.Level] {
			return &InvalidLadderError{Level: l.Level, Reason: "duplicate level number"}
		}
		seen[l.Level] = true
		if l.MinHours.IsNegative() {
			return &InvalidLadderError{Level: l.Level, Reason: "min hours is negative"}
		}
		if l.HourlyRate.IsNegative() {
			return &InvalidLadderError{Level: l.Level, Reason: "hourly rate is negative"}
		}
	}
	return nil
}

// Validate enforces the full ladder invariant: levels in order have
// non-decreasing, non-overlapping bands and exactly one terminal level,
// which is the highest.
func Validate(levels []Level) error {
	if err := checkShape(levels); err != nil {
		return err
	}

	sorted := sortedCopy(levels)
	terminals := 0
	for i, l := range sorted {
		if l.IsTerminal() {
			terminals++
			if i != len(sorted)-1 {
				return &InvalidLadderError{Level: l.Level, Reason: "only the highest level may be unbounded"}
			}
		} else if !l.MinHours.LessThan(*l.MaxHours) {
			return &InvalidLadderError{Level: l.Level, Reason: "max hours must be greater than min hours"}
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.MaxHours != nil && l.MinHours.LessThan(*prev.MaxHours) {
				return &InvalidLadderError{Level: l.Level, Reason: fmt.Sprintf("band overlaps level %d", prev.Level)}
			}
		}
	}
	if terminals != 1 {
		return &InvalidLadderError{Reason: fmt.Sprintf("expected exactly one unbounded level, found %d", terminals)}
	}
	return nil
}

// Validate checks the ladder's levels and tags errors with the ladder ID.
func (l Ladder) Validate() error {
	err := Validate(l.Levels)
	var invalid *InvalidLadderError
	if asInvalid(err, &invalid) {
		invalid.LadderID = l.ID
	}
	return err
}

func sortedCopy(levels []Level) []Level {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return sorted
}

/*
Package deviation allocates a timesheet deviation across booking categories.

PURPOSE:
  When an employee works more or less than planned, an operator decides
  where the difference goes: into the time bank, paid out as overtime,
  converted to comp time, or ignored. This package owns that decision as
  an explicit session object with a commit gate.

KEY CONCEPTS:
  Category:     One of five fixed booking accounts
  Distribution: Minutes per category (always non-negative)
  Session:      The editable partition of one deviation, plus its state
  Recorder:     The persistence collaborator that receives a commit

INVARIANTS:
  1. Every bucket is >= 0
  2. Sum of buckets <= |total deviation| at all times
  3. Commit requires sum == |total deviation| (nothing left unassigned)
  4. A committed session never changes again

SIGN HANDLING:
  Buckets hold magnitudes. The sign of the original deviation is applied
  only when entries are produced for the ledger, so a 30 minute shortfall
  split 10/20 books -10 and -20.

SEE ALSO:
  - session.go: State machine and rebalancing
  - timesheet/reviewer.go: Recorder that writes the ledger
*/
package deviation

import (
	"encoding/json"
	"fmt"

	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// CATEGORY - Closed set of booking accounts
// =============================================================================

// Category is a deviation booking account.
type Category int

// Declared order. Entries and summaries list categories in this order.
const (
	TimeBank Category = iota
	OvertimeTier1
	OvertimeTier2
	CompTime
	Ignored

	numCategories = int(Ignored) + 1
)

var categoryKeys = [numCategories]string{
	TimeBank:      "time_bank",
	OvertimeTier1: "overtime_tier1",
	OvertimeTier2: "overtime_tier2",
	CompTime:      "comp_time",
	Ignored:       "ignored",
}

var categoryLabels = [numCategories]string{
	TimeBank:      "time bank",
	OvertimeTier1: "overtime tier 1",
	OvertimeTier2: "overtime tier 2",
	CompTime:      "comp time",
	Ignored:       "ignored",
}

// Categories returns every category in declared order.
func Categories() []Category {
	return []Category{TimeBank, OvertimeTier1, OvertimeTier2, CompTime, Ignored}
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool { return c >= 0 && int(c) < numCategories }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryKeys[c]
}

// Label is the human-readable name used in summaries.
func (c Category) Label() string {
	if !c.Valid() {
		return c.String()
	}
	return categoryLabels[c]
}

// ParseCategory maps a key such as "overtime_tier1" to its Category.
func ParseCategory(s string) (Category, error) {
	for i, k := range categoryKeys {
		if k == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Categories are ledger accounts.
func (c Category) ResourceID() string     { return c.String() }
func (c Category) ResourceDomain() string { return "deviation" }

var _ generic.ResourceType = TimeBank

func init() {
	for _, c := range Categories() {
		generic.RegisterResource(c)
	}
}

// =============================================================================
// DISTRIBUTION - Minutes per category
// =============================================================================

// Distribution holds the minutes assigned to each category, indexed by Category.
type Distribution [numCategories]int

// Get returns the minutes in c.
func (d Distribution) Get(c Category) int { return d[c] }

// Sum returns the total minutes across all categories.
func (d Distribution) Sum() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

// MarshalJSON writes the distribution as an object keyed by category.
func (d Distribution) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, numCategories)
	for _, c := range Categories() {
		m[c.String()] = d[c]
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads an object keyed by category. Missing keys are zero.
func (d *Distribution) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Distribution
	for k, v := range m {
		c, err := ParseCategory(k)
		if err != nil {
			return err
		}
		out[c] = v
	}
	*d = out
	return nil
}

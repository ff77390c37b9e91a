/*
session.go - Deviation distribution session

PURPOSE:
  A Session is one operator's review of one deviation. It starts from a
  policy default, accepts any number of edits, and is committed once.

STATE MACHINE:
  initialized ──edit──▶ editing ──commit ok──▶ committed (terminal)
       │                   ▲  │
       └────commit ok──────┼──┘ commit failed: stays editing
                           └── edits

DEFAULTS:
  Positive deviation (worked longer): everything to the time bank.
  Negative deviation (worked shorter): everything ignored.

REBALANCING (SetBucket):
  Lowering a bucket frees minutes into "remaining". Raising a bucket takes
  minutes from remaining first, then drains the other buckets in the
  session's borrow order until the increase is covered. Default borrow
  order drains the least valuable bookings first:

    ignored → comp time → overtime tier 2 → overtime tier 1 → time bank

EXAMPLE:
  {time_bank: 10} magnitude 10, SetBucket(OvertimeTier1, 10)
    remaining 0, shortfall 10
    drain ignored 0, comp 0, tier2 0, tier1 (self, skipped), time bank 10
    → {overtime_tier1: 10}

CONCURRENCY:
  A Session is owned by one reviewer at a time and is not safe for
  concurrent mutation. Callers that share sessions (the HTTP API) serialize
  access themselves.
*/
package deviation

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateInitialized State = "initialized"
	StateEditing     State = "editing"
	StateCommitted   State = "committed"
)

// DefaultBorrowOrder is the drain order used when a bucket is raised beyond
// the unassigned minutes.
var DefaultBorrowOrder = []Category{Ignored, CompTime, OvertimeTier2, OvertimeTier1, TimeBank}

// =============================================================================
// SESSION
// =============================================================================

// Session is the serializable distribution of one deviation.
type Session struct {
	TotalMinutes int          `json:"total_minutes"`
	Buckets      Distribution `json:"buckets"`
	State        State        `json:"state"`
	BorrowOrder  []Category   `json:"borrow_order"`
}

// Option configures a new Session.
type Option func(*Session) error

// WithBorrowOrder overrides the drain order. It must list every category once.
func WithBorrowOrder(order ...Category) Option {
	return func(s *Session) error {
		if err := checkBorrowOrder(order); err != nil {
			return err
		}
		s.BorrowOrder = append([]Category(nil), order...)
		return nil
	}
}

// NewSession seeds a session with the policy default for totalMinutes.
func NewSession(totalMinutes int, opts ...Option) (*Session, error) {
	s := &Session{
		TotalMinutes: totalMinutes,
		State:        StateInitialized,
		BorrowOrder:  append([]Category(nil), DefaultBorrowOrder...),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.seedDefault()
	return s, nil
}

func (s *Session) seedDefault() {
	s.Buckets = Distribution{}
	switch {
	case s.TotalMinutes > 0:
		s.Buckets[TimeBank] = s.TotalMinutes
	case s.TotalMinutes < 0:
		s.Buckets[Ignored] = -s.TotalMinutes
	}
}

// DefaultCategory is where NewSession puts the whole deviation.
func DefaultCategory(totalMinutes int) Category {
	if totalMinutes < 0 {
		return Ignored
	}
	return TimeBank
}

// Magnitude is |TotalMinutes|.
func (s *Session) Magnitude() int {
	if s.TotalMinutes < 0 {
		return -s.TotalMinutes
	}
	return s.TotalMinutes
}

// Sign is -1 for a shortfall and +1 otherwise.
func (s *Session) Sign() int {
	if s.TotalMinutes < 0 {
		return -1
	}
	return 1
}

// Remaining is the number of minutes not yet assigned to any category.
func (s *Session) Remaining() int {
	return s.Magnitude() - s.Buckets.Sum()
}

// IsFullyDistributed reports whether every minute is assigned.
func (s *Session) IsFullyDistributed() bool {
	return s.Remaining() == 0
}

// Committed reports whether the session reached its terminal state.
func (s *Session) Committed() bool {
	return s.State == StateCommitted
}

// =============================================================================
// EDITING
// =============================================================================

// SetBucket sets category c to value, borrowing from other buckets when the
// unassigned minutes cannot cover the increase.
func (s *Session) SetBucket(c Category, value int) error {
	if err := s.checkEditable(c); err != nil {
		return err
	}
	magnitude := s.Magnitude()
	if value < 0 || value > magnitude {
		return &OutOfRangeError{Category: c, Value: value, Magnitude: magnitude}
	}

	delta := value - s.Buckets[c]
	if delta > 0 {
		shortfall := delta - s.Remaining()
		for _, other := range s.BorrowOrder {
			if shortfall <= 0 {
				break
			}
			if other == c {
				continue
			}
			take := min(shortfall, s.Buckets[other])
			s.Buckets[other] -= take
			shortfall -= take
		}
	}
	s.Buckets[c] = value
	s.State = StateEditing
	return nil
}

// QuickAssignAll moves the whole deviation into c.
func (s *Session) QuickAssignAll(c Category) error {
	if err := s.checkEditable(c); err != nil {
		return err
	}
	s.Buckets = Distribution{}
	s.Buckets[c] = s.Magnitude()
	s.State = StateEditing
	return nil
}

// ResetToDefault restores the policy default distribution.
func (s *Session) ResetToDefault() error {
	if s.Committed() {
		return ErrSessionCommitted
	}
	s.seedDefault()
	s.State = StateEditing
	return nil
}

func (s *Session) checkEditable(c Category) error {
	if s.Committed() {
		return ErrSessionCommitted
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return nil
}

// Validate checks a session restored from storage or built by a client.
func (s *Session) Validate() error {
	magnitude := s.Magnitude()
	for _, c := range Categories() {
		if v := s.Buckets[c]; v < 0 || v > magnitude {
			return &OutOfRangeError{Category: c, Value: v, Magnitude: magnitude}
		}
	}
	if s.Buckets.Sum() > magnitude {
		return fmt.Errorf("%w: %d minutes assigned of %d", ErrOutOfRange, s.Buckets.Sum(), magnitude)
	}
	switch s.State {
	case StateInitialized, StateEditing, StateCommitted:
	default:
		return fmt.Errorf("unknown session state %q", s.State)
	}
	return checkBorrowOrder(s.BorrowOrder)
}

func checkBorrowOrder(order []Category) error {
	if len(order) != numCategories {
		return ErrInvalidBorrowOrder
	}
	var seen [numCategories]bool
	for _, c := range order {
		if !c.Valid() || seen[c] {
			return ErrInvalidBorrowOrder
		}
		seen[c] = true
	}
	return nil
}

// =============================================================================
// ENTRIES & SUMMARY
// =============================================================================

// Entry is one signed booking produced by a commit.
type Entry struct {
	Category Category `json:"category"`
	Minutes  int      `json:"minutes"`
}

// Entries returns one signed entry per non-empty bucket, in declared order.
func (s *Session) Entries() []Entry {
	entries := make([]Entry, 0, numCategories)
	sign := s.Sign()
	for _, c := range Categories() {
		if v := s.Buckets[c]; v > 0 {
			entries = append(entries, Entry{Category: c, Minutes: sign * v})
		}
	}
	return entries
}

// Summary describes the session for the operator.
func (s *Session) Summary() string {
	if r := s.Remaining(); r > 0 {
		return fmt.Sprintf("%d minutes still unassigned", r)
	}
	if s.TotalMinutes == 0 {
		return "no deviation"
	}

	parts := make([]string, 0, numCategories)
	for _, e := range s.Entries() {
		parts = append(parts, fmt.Sprintf("%s %d", e.Category.Label(), abs(e.Minutes)))
	}
	return fmt.Sprintf("%+d min: %s", s.TotalMinutes, strings.Join(parts, ", "))
}

// =============================================================================
// COMMIT
// =============================================================================

// CommitRecord is handed to the Recorder. It is fully distributed.
type CommitRecord struct {
	TotalMinutes int
	Buckets      Distribution
	Entries      []Entry
	Notes        string
	Summary      string
}

// CommitResult confirms what was recorded.
type CommitResult struct {
	TotalMinutes int     `json:"total_minutes"`
	Entries      []Entry `json:"entries"`
	Summary      string  `json:"summary"`
}

// Recorder persists a committed distribution. It is called at most once per
// successful commit and is never retried by the session.
type Recorder interface {
	Record(ctx context.Context, rec CommitRecord) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec CommitRecord) error

func (f RecorderFunc) Record(ctx context.Context, rec CommitRecord) error { return f(ctx, rec) }

// Commit hands the distribution to recorder and moves the session to its
// terminal state. A recorder error is returned unchanged and leaves the
// session editable so the operator can try again.
func (s *Session) Commit(ctx context.Context, recorder Recorder, notes string) (CommitResult, error) {
	if s.Committed() {
		return CommitResult{}, ErrSessionCommitted
	}
	if r := s.Remaining(); r > 0 {
		return CommitResult{}, &IncompleteDistributionError{Remaining: r}
	}

	rec := CommitRecord{
		TotalMinutes: s.TotalMinutes,
		Buckets:      s.Buckets,
		Entries:      s.Entries(),
		Notes:        notes,
		Summary:      s.Summary(),
	}
	if err := recorder.Record(ctx, rec); err != nil {
		s.State = StateEditing
		return CommitResult{}, err
	}

	s.State = StateCommitted
	return CommitResult{
		TotalMinutes: rec.TotalMinutes,
		Entries:      rec.Entries,
		Summary:      rec.Summary,
	}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

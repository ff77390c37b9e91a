package deviation_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/deviation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type captureRecorder struct {
	calls   int
	records []deviation.CommitRecord
	err     error
}

func (r *captureRecorder) Record(_ context.Context, rec deviation.CommitRecord) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func newSession(t *testing.T, total int) *deviation.Session {
	t.Helper()
	s, err := deviation.NewSession(total)
	require.NoError(t, err)
	return s
}

func assertConserved(t *testing.T, s *deviation.Session) {
	t.Helper()
	for _, c := range deviation.Categories() {
		assert.GreaterOrEqual(t, s.Buckets.Get(c), 0, "bucket %s", c)
	}
	assert.LessOrEqual(t, s.Buckets.Sum(), s.Magnitude())
	assert.GreaterOrEqual(t, s.Remaining(), 0)
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestNewSession_PositiveDefaultsToTimeBank(t *testing.T) {
	s := newSession(t, 45)

	assert.Equal(t, 45, s.Buckets.Get(deviation.TimeBank))
	assert.Equal(t, 45, s.Buckets.Sum())
	assert.True(t, s.IsFullyDistributed())
	assert.Equal(t, deviation.StateInitialized, s.State)
}

func TestNewSession_NegativeDefaultsToIgnored(t *testing.T) {
	s := newSession(t, -30)

	assert.Equal(t, 30, s.Buckets.Get(deviation.Ignored))
	assert.Equal(t, 30, s.Magnitude())
	assert.Equal(t, -1, s.Sign())
	assert.True(t, s.IsFullyDistributed())
}

func TestNewSession_ZeroDeviation(t *testing.T) {
	s := newSession(t, 0)

	assert.Equal(t, 0, s.Buckets.Sum())
	assert.True(t, s.IsFullyDistributed())
	assert.Equal(t, "no deviation", s.Summary())
}

// =============================================================================
// SET BUCKET
// =============================================================================

func TestSetBucket_Lowering_FreesMinutes(t *testing.T) {
	s := newSession(t, 45)

	require.NoError(t, s.SetBucket(deviation.TimeBank, 30))

	assert.Equal(t, 30, s.Buckets.Get(deviation.TimeBank))
	assert.Equal(t, 15, s.Remaining())
	assert.False(t, s.IsFullyDistributed())
	assert.Equal(t, deviation.StateEditing, s.State)
}

func TestSetBucket_Raising_UsesRemainingFirst(t *testing.T) {
	s := newSession(t, 45)
	require.NoError(t, s.SetBucket(deviation.TimeBank, 30))

	require.NoError(t, s.SetBucket(deviation.CompTime, 10))

	assert.Equal(t, 30, s.Buckets.Get(deviation.TimeBank), "slack covers the increase")
	assert.Equal(t, 10, s.Buckets.Get(deviation.CompTime))
	assert.Equal(t, 5, s.Remaining())
}

func TestSetBucket_Raising_DrainsOtherBucket(t *testing.T) {
	// GIVEN: {A:10, B:0, C:0, D:0, E:0} with magnitude 10
	// WHEN: B is set to 10
	// THEN: A is fully drained and nothing is left unassigned

	s := newSession(t, 10)

	require.NoError(t, s.SetBucket(deviation.OvertimeTier1, 10))

	assert.Equal(t, 0, s.Buckets.Get(deviation.TimeBank))
	assert.Equal(t, 10, s.Buckets.Get(deviation.OvertimeTier1))
	assert.Equal(t, 0, s.Remaining())
}

func TestSetBucket_Raising_FollowsBorrowOrder(t *testing.T) {
	// GIVEN: 60 minutes split time bank 20, tier 2 20, ignored 20
	// WHEN: Comp time is raised to 30
	// THEN: Ignored is drained first (20), then tier 2 covers the last 10

	s := newSession(t, 60)
	require.NoError(t, s.SetBucket(deviation.TimeBank, 20))
	require.NoError(t, s.SetBucket(deviation.OvertimeTier2, 20))
	require.NoError(t, s.SetBucket(deviation.Ignored, 20))
	require.True(t, s.IsFullyDistributed())

	require.NoError(t, s.SetBucket(deviation.CompTime, 30))

	assert.Equal(t, 0, s.Buckets.Get(deviation.Ignored))
	assert.Equal(t, 10, s.Buckets.Get(deviation.OvertimeTier2))
	assert.Equal(t, 20, s.Buckets.Get(deviation.TimeBank))
	assert.Equal(t, 30, s.Buckets.Get(deviation.CompTime))
	assert.True(t, s.IsFullyDistributed())
}

func TestSetBucket_CustomBorrowOrder(t *testing.T) {
	s, err := deviation.NewSession(60, deviation.WithBorrowOrder(
		deviation.TimeBank, deviation.OvertimeTier1, deviation.OvertimeTier2, deviation.CompTime, deviation.Ignored,
	))
	require.NoError(t, err)
	require.NoError(t, s.SetBucket(deviation.TimeBank, 40))
	require.NoError(t, s.SetBucket(deviation.Ignored, 20))

	require.NoError(t, s.SetBucket(deviation.CompTime, 10))

	assert.Equal(t, 30, s.Buckets.Get(deviation.TimeBank), "time bank drains first")
	assert.Equal(t, 20, s.Buckets.Get(deviation.Ignored))
}

func TestWithBorrowOrder_RejectsIncompleteOrder(t *testing.T) {
	_, err := deviation.NewSession(10, deviation.WithBorrowOrder(deviation.TimeBank, deviation.TimeBank))
	assert.ErrorIs(t, err, deviation.ErrInvalidBorrowOrder)
}

func TestSetBucket_OutOfRange_LeavesStateUntouched(t *testing.T) {
	s := newSession(t, 45)
	before := s.Buckets

	for _, v := range []int{-1, 46} {
		err := s.SetBucket(deviation.CompTime, v)

		var oor *deviation.OutOfRangeError
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, v, oor.Value)
		assert.Equal(t, 45, oor.Magnitude)
		assert.ErrorIs(t, err, deviation.ErrOutOfRange)
	}
	assert.Equal(t, before, s.Buckets)
	assert.Equal(t, deviation.StateInitialized, s.State)
}

func TestSetBucket_UnknownCategory(t *testing.T) {
	s := newSession(t, 45)
	err := s.SetBucket(deviation.Category(9), 1)
	assert.ErrorIs(t, err, deviation.ErrUnknownCategory)
}

func TestSetBucket_ConservationUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cats := deviation.Categories()

	for _, total := range []int{-90, -1, 1, 17, 240} {
		s := newSession(t, total)
		for i := 0; i < 200; i++ {
			c := cats[rng.Intn(len(cats))]
			if rng.Intn(5) == 0 {
				require.NoError(t, s.QuickAssignAll(c))
			} else {
				require.NoError(t, s.SetBucket(c, rng.Intn(s.Magnitude()+1)))
			}
			assertConserved(t, s)
		}
	}
}

// =============================================================================
// QUICK ASSIGN / RESET
// =============================================================================

func TestQuickAssignAll(t *testing.T) {
	s := newSession(t, 60)
	require.NoError(t, s.SetBucket(deviation.CompTime, 25))

	require.NoError(t, s.QuickAssignAll(deviation.OvertimeTier2))

	assert.Equal(t, 60, s.Buckets.Get(deviation.OvertimeTier2))
	assert.Equal(t, 60, s.Buckets.Sum())
	assert.Equal(t, 0, s.Remaining())
}

func TestResetToDefault(t *testing.T) {
	s := newSession(t, -30)
	require.NoError(t, s.QuickAssignAll(deviation.CompTime))

	require.NoError(t, s.ResetToDefault())

	assert.Equal(t, 30, s.Buckets.Get(deviation.Ignored))
	assert.Equal(t, 0, s.Buckets.Get(deviation.CompTime))
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommit_PositiveDefault(t *testing.T) {
	// GIVEN: +45 minutes, untouched default
	// WHEN: Committing
	// THEN: One +45 entry for the time bank

	s := newSession(t, 45)
	rec := &captureRecorder{}

	result, err := s.Commit(context.Background(), rec, "stayed for close")
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, deviation.Entry{Category: deviation.TimeBank, Minutes: 45}, result.Entries[0])
	assert.Equal(t, "+45 min: time bank 45", result.Summary)
	require.Len(t, rec.records, 1)
	assert.Equal(t, "stayed for close", rec.records[0].Notes)
	assert.True(t, s.Committed())
}

func TestCommit_NegativeSplit(t *testing.T) {
	// GIVEN: -30 minutes defaulting to ignored
	// WHEN: Ignored is lowered to 10 and tier 1 raised to 20
	// THEN: Two negative entries are committed

	s := newSession(t, -30)
	require.NoError(t, s.SetBucket(deviation.Ignored, 10))
	require.NoError(t, s.SetBucket(deviation.OvertimeTier1, 20))
	assert.Equal(t, 0, s.Remaining())

	result, err := s.Commit(context.Background(), &captureRecorder{}, "")
	require.NoError(t, err)

	assert.Equal(t, []deviation.Entry{
		{Category: deviation.OvertimeTier1, Minutes: -20},
		{Category: deviation.Ignored, Minutes: -10},
	}, result.Entries)
	assert.Equal(t, "-30 min: overtime tier 1 20, ignored 10", result.Summary)
}

func TestCommit_BlockedWhileIncomplete(t *testing.T) {
	s := newSession(t, 45)
	require.NoError(t, s.SetBucket(deviation.TimeBank, 33))
	rec := &captureRecorder{}

	_, err := s.Commit(context.Background(), rec, "")

	var incomplete *deviation.IncompleteDistributionError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 12, incomplete.Remaining)
	assert.Equal(t, "12 minutes still unassigned", err.Error())
	assert.Equal(t, 0, rec.calls, "recorder must not see a partial allocation")
	assert.False(t, s.Committed())
}

func TestCommit_SecondCommitFails(t *testing.T) {
	s := newSession(t, 45)
	rec := &captureRecorder{}

	_, err := s.Commit(context.Background(), rec, "")
	require.NoError(t, err)

	_, err = s.Commit(context.Background(), rec, "")
	assert.ErrorIs(t, err, deviation.ErrSessionCommitted)
	assert.Equal(t, 1, rec.calls)

	assert.ErrorIs(t, s.SetBucket(deviation.CompTime, 1), deviation.ErrSessionCommitted)
	assert.ErrorIs(t, s.QuickAssignAll(deviation.CompTime), deviation.ErrSessionCommitted)
	assert.ErrorIs(t, s.ResetToDefault(), deviation.ErrSessionCommitted)
}

func TestCommit_RecorderFailureIsSurfacedUnchanged(t *testing.T) {
	// GIVEN: A recorder that fails once
	// WHEN: Committing
	// THEN: The same error comes back, the session stays editable,
	//       and a manual retry succeeds

	persistErr := errors.New("connection reset")
	s := newSession(t, 45)
	rec := &captureRecorder{err: persistErr}

	_, err := s.Commit(context.Background(), rec, "")
	assert.Same(t, persistErr, err)
	assert.Equal(t, deviation.StateEditing, s.State)
	assert.Equal(t, 1, rec.calls, "no automatic retry")

	rec.err = nil
	_, err = s.Commit(context.Background(), rec, "")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.calls)
}

func TestCommit_RecorderFunc(t *testing.T) {
	s := newSession(t, 0)
	var got deviation.CommitRecord

	_, err := s.Commit(context.Background(), deviation.RecorderFunc(func(_ context.Context, rec deviation.CommitRecord) error {
		got = rec
		return nil
	}), "nothing to book")
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
	assert.Equal(t, "nothing to book", got.Notes)
}

// =============================================================================
// SERIALIZATION
// =============================================================================

func TestSession_JSONShape(t *testing.T) {
	s := newSession(t, -30)
	require.NoError(t, s.SetBucket(deviation.OvertimeTier1, 20))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	buckets := raw["buckets"].(map[string]any)
	assert.EqualValues(t, 20, buckets["overtime_tier1"])
	assert.EqualValues(t, 10, buckets["ignored"])
	assert.Equal(t, "ignored", raw["borrow_order"].([]any)[0])

	var restored deviation.Session
	require.NoError(t, json.Unmarshal(data, &restored))
	require.NoError(t, restored.Validate())
	assert.Equal(t, s.Buckets, restored.Buckets)
	assert.Equal(t, s.BorrowOrder, restored.BorrowOrder)
}

func TestSession_ValidateRejectsOverAllocation(t *testing.T) {
	s := newSession(t, 10)
	s.Buckets[deviation.CompTime] = 5 // time bank already holds 10

	assert.ErrorIs(t, s.Validate(), deviation.ErrOutOfRange)
}

func TestParseCategory(t *testing.T) {
	for _, c := range deviation.Categories() {
		parsed, err := deviation.ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	_, err := deviation.ParseCategory("overtime")
	assert.ErrorIs(t, err, deviation.ErrUnknownCategory)
}

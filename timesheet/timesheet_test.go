package timesheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/ladder"
	"github.com/warp/workforce-engine/store/sqlstore"
	"github.com/warp/workforce-engine/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store    *sqlstore.Store
	reviewer *timesheet.Reviewer
	tenure   *timesheet.Tenure
}

func setup(t *testing.T) fixture {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, timesheet.Employee{
		ID:            "emp-1",
		Name:          "Bea",
		StartingHours: decimal.NewFromInt(740),
		LadderID:      "standard",
	}))
	bandEnd1, bandEnd2 := decimal.NewFromInt(500), decimal.NewFromInt(1000)
	require.NoError(t, store.SaveLadder(ctx, ladder.Ladder{ID: "standard", Name: "Standard", Levels: []ladder.Level{
		{Level: 1, MinHours: decimal.Zero, MaxHours: &bandEnd1, HourlyRate: decimal.NewFromInt(200)},
		{Level: 2, MinHours: bandEnd1, MaxHours: &bandEnd2, HourlyRate: decimal.NewFromInt(210)},
		{Level: 3, MinHours: bandEnd2, HourlyRate: decimal.NewFromInt(225)},
	}}))

	return fixture{
		store:    store,
		reviewer: timesheet.NewReviewer(store),
		tenure:   timesheet.NewTenure(store),
	}
}

// entry plans 8h with a 30 minute break and adds deviation minutes to the actual end.
func entry(id string, day, deviationMinutes int) timesheet.TimeEntry {
	start := time.Date(2025, 3, day, 8, 0, 0, 0, time.UTC)
	return timesheet.TimeEntry{
		ID:                  id,
		EmployeeID:          "emp-1",
		PlannedStart:        start,
		PlannedEnd:          start.Add(8 * time.Hour),
		PlannedBreakMinutes: 30,
		ActualStart:         start,
		ActualEnd:           start.Add(8*time.Hour + time.Duration(deviationMinutes)*time.Minute),
		ActualBreakMinutes:  30,
		Status:              timesheet.StatusPending,
	}
}

func (f fixture) save(t *testing.T, e timesheet.TimeEntry) {
	t.Helper()
	require.NoError(t, f.store.SaveTimeEntry(context.Background(), e))
}

// =============================================================================
// TIME ENTRY
// =============================================================================

func TestTimeEntry_Minutes(t *testing.T) {
	e := entry("e1", 3, -30)

	assert.Equal(t, 450, e.PlannedMinutes())
	assert.Equal(t, 420, e.WorkedMinutes())
	assert.Equal(t, -30, e.DeviationMinutes())
}

func TestTimeEntry_WorkedMinutesNeverNegative(t *testing.T) {
	e := entry("e1", 3, 0)
	e.ActualEnd = e.ActualStart.Add(10 * time.Minute)
	e.ActualBreakMinutes = 60

	assert.Equal(t, 0, e.WorkedMinutes())
}

// =============================================================================
// REVIEWER
// =============================================================================

func TestReviewer_OpenSeedsDefault(t *testing.T) {
	f := setup(t)
	f.save(t, entry("e1", 3, 45))

	got, session, err := f.reviewer.Open(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, 45, session.TotalMinutes)
	assert.Equal(t, 45, session.Buckets.Get(deviation.TimeBank))
}

func TestReviewer_OpenUnknownEntry(t *testing.T) {
	f := setup(t)
	_, _, err := f.reviewer.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)
	assert.True(t, timesheet.IsNotFound(err))
}

func TestReviewer_ResolveBooksLedgerAndResolvesEntry(t *testing.T) {
	// GIVEN: A 30 minute shortfall
	// WHEN: The operator splits it ignored 10 / tier 1 20 and commits
	// THEN: Two negative bookings exist and the entry is resolved

	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, -30))

	_, session, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)
	require.NoError(t, session.SetBucket(deviation.Ignored, 10))
	require.NoError(t, session.SetBucket(deviation.OvertimeTier1, 20))

	result, err := f.reviewer.Resolve(ctx, "e1", session, "mgr-7", "left early")
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.True(t, session.Committed())

	tier1, err := f.store.Load(ctx, "emp-1", deviation.OvertimeTier1)
	require.NoError(t, err)
	require.Len(t, tier1, 1)
	assert.Equal(t, "-20", tier1[0].Delta.Value.String())
	assert.Equal(t, "e1:overtime_tier1", tier1[0].IdempotencyKey)
	assert.Equal(t, "e1", tier1[0].ReferenceID)
	assert.Equal(t, generic.TxDeviation, tier1[0].Type)
	assert.Equal(t, "mgr-7", tier1[0].CreatedBy)

	stored, err := f.store.GetTimeEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusResolved, stored.Status)
	assert.Equal(t, "mgr-7", stored.ResolvedBy)
	assert.Equal(t, "left early", stored.Notes)
}

func TestReviewer_ResolveTwiceRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, 45))

	_, first, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)
	_, second, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)

	_, err = f.reviewer.Resolve(ctx, "e1", first, "a", "")
	require.NoError(t, err)

	_, err = f.reviewer.Resolve(ctx, "e1", second, "b", "")
	assert.ErrorIs(t, err, timesheet.ErrEntryResolved)
	assert.False(t, second.Committed())
}

func TestReviewer_ConcurrentRecorderHitsIdempotencyKey(t *testing.T) {
	// GIVEN: Two operators who opened the same entry
	// WHEN: Both sessions reach the recorder (the second bypasses the status check)
	// THEN: The second commit fails on the idempotency key and stays editable

	f := setup(t)
	ctx := context.Background()
	e := entry("e1", 3, 45)
	f.save(t, e)

	_, first, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)
	_, second, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)

	_, err = first.Commit(ctx, f.reviewer.Recorder(e, "a"), "")
	require.NoError(t, err)

	_, err = second.Commit(ctx, f.reviewer.Recorder(e, "b"), "")
	var persistErr *timesheet.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	assert.Equal(t, deviation.StateEditing, second.State)

	bank, err := f.store.Load(ctx, "emp-1", deviation.TimeBank)
	require.NoError(t, err)
	assert.Len(t, bank, 1)
}

func TestReviewer_IncompleteSessionBooksNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, 45))

	_, session, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)
	require.NoError(t, session.SetBucket(deviation.TimeBank, 40))

	_, err = f.reviewer.Resolve(ctx, "e1", session, "a", "")
	assert.ErrorIs(t, err, deviation.ErrIncompleteDistribution)

	stored, err := f.store.GetTimeEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusPending, stored.Status)
}

func TestReviewer_SessionMismatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, 45))

	other, err := deviation.NewSession(20)
	require.NoError(t, err)

	_, err = f.reviewer.Resolve(ctx, "e1", other, "a", "")
	assert.ErrorIs(t, err, timesheet.ErrSessionMismatch)
}

func TestReviewer_ZeroDeviationResolvesWithoutBookings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, 0))

	_, session, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)

	result, err := f.reviewer.Resolve(ctx, "e1", session, "a", "")
	require.NoError(t, err)
	assert.Empty(t, result.Entries)

	all, err := f.store.LoadByEntity(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

// =============================================================================
// TENURE
// =============================================================================

func TestTenure_OnlyResolvedEntriesCount(t *testing.T) {
	// GIVEN: 740 starting hours, one resolved 7.5h shift, one pending shift
	// WHEN: Computing accumulated hours
	// THEN: 747.5

	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, 0))
	f.save(t, entry("e2", 4, 0))

	_, session, err := f.reviewer.Open(ctx, "e1")
	require.NoError(t, err)
	_, err = f.reviewer.Resolve(ctx, "e1", session, "a", "")
	require.NoError(t, err)

	hours, err := f.tenure.AccumulatedHours(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "747.5", hours.String())
}

func TestTenure_Progress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := entry("e1", 3, 0)
	e.Status = timesheet.StatusResolved
	e.ActualEnd = e.ActualStart.Add(10*time.Hour + 30*time.Minute) // 10h worked
	f.save(t, e)

	report, err := f.tenure.Progress(ctx, "emp-1", "")
	require.NoError(t, err)

	assert.Equal(t, "standard", report.LadderID)
	assert.Equal(t, "750", report.AccumulatedHours.String())
	assert.Equal(t, 2, report.Progress.Level)
	require.NotNil(t, report.Progress.HoursToNextLevel)
	assert.Equal(t, "250", report.Progress.HoursToNextLevel.String())
}

func TestTenure_UnknownLadderAndEmployee(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.tenure.Progress(ctx, "emp-1", "missing")
	assert.ErrorIs(t, err, timesheet.ErrLadderNotFound)

	_, err = f.tenure.Progress(ctx, "ghost", "standard")
	assert.ErrorIs(t, err, timesheet.ErrEmployeeNotFound)
}

// =============================================================================
// BALANCES
// =============================================================================

func TestBalances_AllCategoriesInOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.save(t, entry("e1", 3, 45))
	f.save(t, entry("e2", 4, -30))

	for _, id := range []string{"e1", "e2"} {
		_, session, err := f.reviewer.Open(ctx, id)
		require.NoError(t, err)
		_, err = f.reviewer.Resolve(ctx, id, session, "a", "")
		require.NoError(t, err)
	}

	balances, err := f.tenure.Balances(ctx, "emp-1", generic.Now())
	require.NoError(t, err)
	require.Len(t, balances, 5)
	assert.Equal(t, deviation.TimeBank, balances[0].Category)
	assert.Equal(t, "45", balances[0].Minutes.String())
	assert.Equal(t, "0.75", balances[0].Hours.String())
	assert.Equal(t, deviation.Ignored, balances[4].Category)
	assert.Equal(t, "-30", balances[4].Minutes.String())
	assert.True(t, balances[1].Minutes.IsZero())
}

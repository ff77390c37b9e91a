package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/store/sessions"
	"github.com/warp/workforce-engine/store/sqlstore"
	"github.com/warp/workforce-engine/timesheet"
)

func setupEmptyServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, sessions.NewMemory(time.Hour))
	return &testServer{h: h, router: NewRouter(h, RouterOptions{})}
}

func TestScenarios_AllLoad(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			ts := setupEmptyServer(t)
			rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, sc.ID, decodeBody[ScenarioDTO](t, rec).ID)
		})
	}
}

func TestScenarios_LoadTwiceResets(t *testing.T) {
	ts := setupEmptyServer(t)
	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "restaurant"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	txs, err := ts.h.Store.LoadByEntity(context.Background(), "emp-001")
	require.NoError(t, err)
	assert.Len(t, txs, 3, "tier 1 and time bank from te-101, time bank from te-102")
}

func TestScenarios_RestaurantBalances(t *testing.T) {
	// GIVEN: The restaurant scenario
	// WHEN: Reading emp-001's balances and tenure
	// THEN: Time bank is +20 -30, tier 1 is 40 and two shifts count toward tenure

	ts := setupEmptyServer(t)
	require.NoError(t, ts.h.loadScenario(context.Background(), "restaurant"))

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-001/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decodeBody[[]timesheet.CategoryBalance](t, rec)
	assert.Equal(t, "-10", balances[0].Minutes.String())
	assert.Equal(t, "40", balances[1].Minutes.String())
	assert.True(t, balances[4].Minutes.IsZero())

	rec = ts.do(t, http.MethodGet, "/api/employees/emp-001/tenure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[timesheet.TenureReport](t, rec)
	assert.Equal(t, "636.5", report.AccumulatedHours.String())
	assert.Equal(t, 2, report.Progress.Level)

	rec = ts.do(t, http.MethodGet, "/api/employees/emp-003/tenure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report = decodeBody[timesheet.TenureReport](t, rec)
	assert.Equal(t, "1468", report.AccumulatedHours.String())
	assert.Equal(t, 4, report.Progress.Level)
	assert.Nil(t, report.Progress.NextLevel)

	rec = ts.do(t, http.MethodGet, "/api/time-entries/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]TimeEntryDTO](t, rec), 2)
}

func TestScenarios_LevelThreshold(t *testing.T) {
	// GIVEN: An employee at 496 hours with a pending 8h shift
	// WHEN: The shift is resolved
	// THEN: The employee moves from level 1 to level 2

	ts := setupEmptyServer(t)
	require.NoError(t, ts.h.loadScenario(context.Background(), "level-threshold"))

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-001/tenure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	before := decodeBody[timesheet.TenureReport](t, rec)
	assert.Equal(t, "496", before.AccumulatedHours.String())
	assert.Equal(t, 1, before.Progress.Level)
	require.NotNil(t, before.Progress.HoursToNextLevel)
	assert.Equal(t, "4", before.Progress.HoursToNextLevel.String())

	s := ts.open(t, "te-002")
	rec = ts.do(t, http.MethodPost, "/api/deviation/"+s.ID+"/commit", CommitRequest{Actor: "manager"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/employees/emp-001/tenure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decodeBody[timesheet.TenureReport](t, rec)
	assert.Equal(t, "504", after.AccumulatedHours.String())
	assert.Equal(t, 2, after.Progress.Level)
}

func TestScenarios_Unknown(t *testing.T) {
	ts := setupEmptyServer(t)
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarios_Reset(t *testing.T) {
	ts := setupEmptyServer(t)
	require.NoError(t, ts.h.loadScenario(context.Background(), "new-hire"))

	rec := ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]EmployeeDTO](t, rec))
}

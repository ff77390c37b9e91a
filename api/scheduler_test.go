package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewMonitor_RunNow(t *testing.T) {
	// GIVEN: Two pending shifts, one of them three weeks old
	// WHEN: The monitor checks
	// THEN: Both are pending, one is stale and the gauge is set

	ts := setupTestServer(t)
	ts.saveShift(t, demoShift("te-old", "emp-1", 1, 510, 30, 540, 30))
	ts.saveShift(t, demoShift("te-new", "emp-1", 20, 510, 30, 540, 30))

	rm := NewReviewMonitor(ts.h.Store, ts.h.Metrics)
	rm.now = func() time.Time { return time.Date(2025, 3, 22, 12, 0, 0, 0, time.UTC) }

	report, err := rm.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pending)
	assert.Equal(t, 1, report.Stale)
	assert.Equal(t, "te-old", report.OldestEntry)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "wfe_pending_time_entries 2")

	last := rm.LastReport()
	require.NotNil(t, last)
	assert.Equal(t, report, *last)
}

func TestReviewMonitor_StartStop(t *testing.T) {
	ts := setupTestServer(t)
	rm := NewReviewMonitor(ts.h.Store, ts.h.Metrics)
	rm.CheckInterval = time.Hour

	rm.Start()
	rm.Stop()
	assert.NotNil(t, rm.LastReport(), "runs once on start")

	rm.Stop()
}

func TestReviewMonitor_Disabled(t *testing.T) {
	ts := setupTestServer(t)
	rm := NewReviewMonitor(ts.h.Store, ts.h.Metrics)
	rm.Enabled = false

	rm.Start()
	rm.Stop()
	assert.Nil(t, rm.LastReport())
}

func TestReviewMonitor_Endpoint(t *testing.T) {
	ts := setupTestServer(t)
	rm := NewReviewMonitor(ts.h.Store, ts.h.Metrics)
	router := NewRouter(ts.h, RouterOptions{Monitor: rm})

	ts.saveShift(t, demoShift("te-1", "emp-1", 3, 510, 30, 540, 30))
	req, err := http.NewRequest(http.MethodGet, "/api/admin/review-status", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"pending":1`))
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates ladders, employees and
	shifts, and resolves some of the shifts through the same reviewer the
	API uses so the ledger holds real bookings.

AVAILABLE SCENARIOS:

	new-hire:         One employee, one pending shift with overtime
	restaurant:       Two ladders, three employees, mixed pending/resolved shifts
	level-threshold:  An employee whose next resolved shift crosses a level

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create ladders via factory
 3. Create employees
 4. Record shifts
 5. Optionally resolve shifts with a chosen distribution

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "restaurant"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Domain handlers
  - factory/ladder.go: Ladder presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/timesheet"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-hire",
		Name:        "New Hire",
		Description: "One employee on the standard ladder with a pending 45 minute overtime shift",
	},
	{
		ID:          "restaurant",
		Name:        "Restaurant",
		Description: "Kitchen and standard ladders, three employees, resolved and pending shifts",
	},
	{
		ID:          "level-threshold",
		Name:        "Level Threshold",
		Description: "Employee 4 hours below level 2; resolving the pending shift moves them up",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if err == errUnknownScenario {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%s", req.ScenarioID))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errUnknownScenario = fmt.Errorf("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	loaders := map[string]func(context.Context) error{
		"new-hire":        h.loadNewHireScenario,
		"restaurant":      h.loadRestaurantScenario,
		"level-threshold": h.loadLevelThresholdScenario,
	}
	load, ok := loaders[id]
	if !ok {
		return errUnknownScenario
	}
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewHireScenario(ctx context.Context) error {
	if err := h.seedLadders(ctx, factory.StandardLadderJSON("standard", "Standard wage ladder")); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-001", "Alex Novak", "2025-03-01", 0, "standard"); err != nil {
		return err
	}
	// 8h plan with 30m break, stayed 45 minutes longer
	return h.Store.SaveTimeEntry(ctx, demoShift("te-001", "emp-001", 3, 510, 30, 555, 30))
}

func (h *Handler) loadRestaurantScenario(ctx context.Context) error {
	if err := h.seedLadders(ctx,
		factory.StandardLadderJSON("standard", "Standard wage ladder"),
		factory.StepLadderJSON("kitchen", "Kitchen staff", 400, "180.00", "190.00", "205.00", "220.00"),
	); err != nil {
		return err
	}
	employees := []struct {
		id, name, hired string
		hours           int64
		ladder          string
	}{
		{"emp-001", "Sam Ortiz", "2023-05-02", 620, "standard"},
		{"emp-002", "Kim Berg", "2024-09-16", 380, "kitchen"},
		{"emp-003", "Jo Lind", "2021-01-11", 1450, "kitchen"},
	}
	for _, e := range employees {
		if err := h.seedEmployee(ctx, e.id, e.name, e.hired, e.hours, e.ladder); err != nil {
			return err
		}
	}

	shifts := []timesheet.TimeEntry{
		demoShift("te-101", "emp-001", 3, 510, 30, 570, 30), // +60
		demoShift("te-102", "emp-001", 4, 510, 30, 480, 30), // -30
		demoShift("te-103", "emp-001", 5, 510, 30, 530, 30), // +20, left pending
		demoShift("te-201", "emp-002", 3, 390, 30, 435, 30), // +45
		demoShift("te-202", "emp-002", 4, 390, 30, 360, 45), // -45, left pending
		demoShift("te-301", "emp-003", 3, 510, 30, 630, 30), // +120
		demoShift("te-302", "emp-003", 4, 510, 30, 510, 30), // no deviation
	}
	for _, s := range shifts {
		if err := h.Store.SaveTimeEntry(ctx, s); err != nil {
			return err
		}
	}

	resolutions := []struct {
		entry string
		edit  func(*deviation.Session) error
		notes string
	}{
		{"te-101", func(s *deviation.Session) error {
			return s.SetBucket(deviation.OvertimeTier1, 40) // 20 stays in time bank
		}, "Covered late delivery"},
		{"te-102", func(s *deviation.Session) error {
			return s.SetBucket(deviation.TimeBank, 30) // left early, taken from time bank
		}, "Doctor appointment"},
		{"te-201", nil, ""},
		{"te-301", func(s *deviation.Session) error {
			if err := s.SetBucket(deviation.OvertimeTier1, 60); err != nil {
				return err
			}
			return s.SetBucket(deviation.OvertimeTier2, 60)
		}, "Private event"},
		{"te-302", nil, ""},
	}
	for _, res := range resolutions {
		if err := h.resolveShift(ctx, res.entry, "demo-manager", res.notes, res.edit); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadLevelThresholdScenario(ctx context.Context) error {
	if err := h.seedLadders(ctx, factory.StandardLadderJSON("standard", "Standard wage ladder")); err != nil {
		return err
	}
	if err := h.seedEmployee(ctx, "emp-001", "Rae Holm", "2024-02-05", 492, "standard"); err != nil {
		return err
	}
	// 496h after this one, still level 1
	if err := h.Store.SaveTimeEntry(ctx, demoShift("te-001", "emp-001", 3, 270, 30, 270, 30)); err != nil {
		return err
	}
	if err := h.resolveShift(ctx, "te-001", "demo-manager", "", nil); err != nil {
		return err
	}
	// resolving this 8h shift reaches 504h, level 2
	return h.Store.SaveTimeEntry(ctx, demoShift("te-002", "emp-001", 4, 510, 30, 510, 30))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedLadders(ctx context.Context, definitions ...string) error {
	for _, def := range definitions {
		l, err := h.LadderFactory.ParseJSON([]byte(def))
		if err != nil {
			return err
		}
		if err := h.Store.SaveLadder(ctx, *l); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedEmployee(ctx context.Context, id, name, hired string, startingHours int64, ladderID string) error {
	hireDate, err := time.Parse("2006-01-02", hired)
	if err != nil {
		return err
	}
	return h.Store.SaveEmployee(ctx, timesheet.Employee{
		ID:            generic.EntityID(id),
		Name:          name,
		HireDate:      hireDate,
		StartingHours: decimal.NewFromInt(startingHours),
		LadderID:      ladderID,
	})
}

// resolveShift opens a session, applies edit (nil keeps the default) and
// commits it.
func (h *Handler) resolveShift(ctx context.Context, entryID, actor, notes string, edit func(*deviation.Session) error) error {
	_, session, err := h.Reviewer.Open(ctx, entryID)
	if err != nil {
		return err
	}
	if edit != nil {
		if err := edit(session); err != nil {
			return err
		}
	}
	_, err = h.Reviewer.Resolve(ctx, entryID, session, actor, notes)
	return err
}

// demoShift builds a March 2025 shift starting at 08:00. Spans are minutes
// including the break.
func demoShift(id, employeeID string, day, plannedSpan, plannedBreak, actualSpan, actualBreak int) timesheet.TimeEntry {
	start := time.Date(2025, 3, day, 8, 0, 0, 0, time.UTC)
	return timesheet.TimeEntry{
		ID:                  id,
		EmployeeID:          generic.EntityID(employeeID),
		PlannedStart:        start,
		PlannedEnd:          start.Add(time.Duration(plannedSpan) * time.Minute),
		PlannedBreakMinutes: plannedBreak,
		ActualStart:         start,
		ActualEnd:           start.Add(time.Duration(actualSpan) * time.Minute),
		ActualBreakMinutes:  actualBreak,
		Status:              timesheet.StatusPending,
	}
}

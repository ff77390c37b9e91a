/*
handlers.go - HTTP API handlers for the workforce engine

PURPOSE:
  Exposes deviation review and wage ladders via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List all employees
    POST   /api/employees                    Create employee
    GET    /api/employees/{id}               Get employee details
    GET    /api/employees/{id}/tenure        Ladder position (?ladder_id=)
    GET    /api/employees/{id}/balances      Minutes per deviation category (?as_of=)
    GET    /api/employees/{id}/ledger        Ledger bookings
    GET    /api/employees/{id}/ledger.xlsx   Ledger bookings as a spreadsheet
    GET    /api/employees/{id}/time-entries  Recorded shifts

  Time entries:
    POST   /api/time-entries                 Record a shift
    GET    /api/time-entries/pending         Entries waiting for review
    GET    /api/time-entries/{id}            Get one shift
    GET    /api/time-entries/{id}/bookings   Ledger bookings of a resolved shift
    POST   /api/time-entries/{id}/deviation  Open a deviation session

  Deviation sessions: see deviation.go

  Transactions:
    GET    /api/transactions/recent          Latest bookings (?limit=)

  Ladders:
    GET    /api/ladders                      List ladders
    POST   /api/ladders                      Create or replace a ladder
    GET    /api/ladders/{id}                 Get a ladder
    DELETE /api/ladders/{id}                 Delete a ladder
    POST   /api/ladders/{id}/resolve         Level at a number of hours

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, out-of-range buckets, invalid ladders
  - 404: Resource not found
  - 409: Conflict (already committed, already resolved, duplicate booking)
  - 422: Deviation not fully distributed (body carries "remaining")
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - deviation.go: Session handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/ladder"
	"github.com/warp/workforce-engine/store/sessions"
	"github.com/warp/workforce-engine/store/sqlstore"
	"github.com/warp/workforce-engine/timesheet"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlstore.Store
	Sessions      sessions.Store
	Reviewer      *timesheet.Reviewer
	Tenure        *timesheet.Tenure
	LadderFactory *factory.LadderFactory
	Metrics       *Metrics

	validate *validator.Validate
	locks    *keyedMutex
	now      func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store. Open deviation sessions live in
// sess.
func NewHandler(store *sqlstore.Store, sess sessions.Store) *Handler {
	return &Handler{
		Store:         store,
		Sessions:      sess,
		Reviewer:      timesheet.NewReviewer(store),
		Tenure:        timesheet.NewTenure(store),
		LadderFactory: factory.NewLadderFactory(),
		Metrics:       NewMetrics(),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		locks:         newKeyedMutex(),
		now:           time.Now,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}
	starting := decimal.Zero
	if req.StartingHours != nil {
		starting = *req.StartingHours
	}
	if starting.IsNegative() {
		writeError(w, http.StatusBadRequest, "starting_hours must not be negative", nil)
		return
	}
	if req.LadderID != "" {
		l, err := h.Store.GetLadder(r.Context(), req.LadderID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get ladder", err)
			return
		}
		if l == nil {
			writeError(w, http.StatusBadRequest, "Unknown ladder", fmt.Errorf("ladder %q does not exist", req.LadderID))
			return
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	emp := timesheet.Employee{
		ID:            generic.EntityID(req.ID),
		Name:          req.Name,
		Email:         req.Email,
		HireDate:      hireDate,
		StartingHours: starting,
		LadderID:      req.LadderID,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetTenure returns accumulated hours and the ladder position.
func (h *Handler) GetTenure(w http.ResponseWriter, r *http.Request) {
	report, err := h.Tenure.Progress(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("ladder_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Metrics.LadderResolutions.WithLabelValues(report.LadderID).Inc()
	writeJSON(w, http.StatusOK, report)
}

// GetBalances returns every deviation category's ledger total. as_of is an
// inclusive YYYY-MM-DD date, defaulting to now.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}
	balances, err := h.Tenure.Balances(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// GetLedger returns all bookings of an employee.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.requireEmployee(w, r, id); !ok {
		return
	}
	txs, err := h.Store.LoadByEntity(r.Context(), generic.EntityID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// RecentTransactions returns the latest bookings across all employees.
// limit defaults to 50 and is capped at 500.
func (h *Handler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = min(n, 500)
	}
	txs, err := h.Store.RecentTransactions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// ListEmployeeTimeEntries returns an employee's shifts in planned order.
func (h *Handler) ListEmployeeTimeEntries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.requireEmployee(w, r, id); !ok {
		return
	}
	entries, err := h.Store.ListTimeEntries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list time entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTOs(entries))
}

// =============================================================================
// TIME ENTRY HANDLERS
// =============================================================================

// CreateTimeEntry records a shift as pending. A resolved entry cannot be
// replaced.
func (h *Handler) CreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateTimeEntryRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	emp, err := h.Store.GetEmployee(r.Context(), req.EmployeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusBadRequest, "Unknown employee", fmt.Errorf("employee %q does not exist", req.EmployeeID))
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	} else {
		existing, err := h.Store.GetTimeEntry(r.Context(), req.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get time entry", err)
			return
		}
		if existing != nil && existing.IsResolved() {
			writeDomainError(w, fmt.Errorf("%w: %s", timesheet.ErrEntryResolved, req.ID))
			return
		}
	}

	entry := timesheet.TimeEntry{
		ID:                  req.ID,
		EmployeeID:          emp.ID,
		PlannedStart:        req.PlannedStart.UTC(),
		PlannedEnd:          req.PlannedEnd.UTC(),
		PlannedBreakMinutes: req.PlannedBreakMinutes,
		ActualStart:         req.ActualStart.UTC(),
		ActualEnd:           req.ActualEnd.UTC(),
		ActualBreakMinutes:  req.ActualBreakMinutes,
		Status:              timesheet.StatusPending,
	}
	if err := h.Store.SaveTimeEntry(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save time entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeEntryDTO(entry))
}

// GetTimeEntry returns one shift with its deviation.
func (h *Handler) GetTimeEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.Store.GetTimeEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get time entry", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Time entry not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(*entry))
}

// GetEntryBookings returns the ledger bookings made when an entry was resolved.
func (h *Handler) GetEntryBookings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.Store.GetTimeEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get time entry", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Time entry not found", nil)
		return
	}
	txs, err := h.Store.TransactionsByReference(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// ListPendingEntries returns entries waiting for deviation review.
func (h *Handler) ListPendingEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListPendingEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTOs(entries))
}

// =============================================================================
// LADDER HANDLERS
// =============================================================================

// ListLadders returns all ladders.
func (h *Handler) ListLadders(w http.ResponseWriter, r *http.Request) {
	ladders, err := h.Store.ListLadders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ladders", err)
		return
	}
	if ladders == nil {
		ladders = []ladder.Ladder{}
	}
	writeJSON(w, http.StatusOK, ladders)
}

// CreateLadder validates and stores a ladder definition.
func (h *Handler) CreateLadder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	l, err := h.LadderFactory.ParseJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ladder definition", err)
		return
	}
	if err := h.Store.SaveLadder(r.Context(), *l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save ladder", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// GetLadder returns one ladder.
func (h *Handler) GetLadder(w http.ResponseWriter, r *http.Request) {
	l, ok := h.requireLadder(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// DeleteLadder removes a ladder.
func (h *Handler) DeleteLadder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.requireLadder(w, r, id); !ok {
		return
	}
	if err := h.Store.DeleteLadder(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete ladder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveLadder returns the level, rate and distance to the next level at
// the given hours.
func (h *Handler) ResolveLadder(w http.ResponseWriter, r *http.Request) {
	l, ok := h.requireLadder(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req ResolveLadderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	progress, err := l.Resolve(*req.Hours)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Metrics.LadderResolutions.WithLabelValues(l.ID).Inc()
	writeJSON(w, http.StatusOK, ResolveLadderResponse{
		LadderID: l.ID,
		Hours:    *req.Hours,
		Progress: progress,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) requireEmployee(w http.ResponseWriter, r *http.Request, id string) (*timesheet.Employee, bool) {
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return nil, false
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return nil, false
	}
	return emp, true
}

func (h *Handler) requireLadder(w http.ResponseWriter, r *http.Request, id string) (*ladder.Ladder, bool) {
	l, err := h.Store.GetLadder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get ladder", err)
		return nil, false
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Ladder not found", nil)
		return nil, false
	}
	return l, true
}

// decode reads a JSON body into dst and validates its struct tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *Handler) decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return h.validate.Struct(dst)
}

func asOf(r *http.Request, now time.Time) (generic.TimePoint, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return generic.At(now), nil
	}
	day, err := time.Parse("2006-01-02", v)
	if err != nil {
		return generic.TimePoint{}, err
	}
	// last minute of the day, so bookings on that day count
	return generic.At(day.AddDate(0, 0, 1).Add(-time.Minute)), nil
}

func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toTimeEntryDTOs(entries []timesheet.TimeEntry) []TimeEntryDTO {
	dtos := make([]TimeEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTimeEntryDTO(e)
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var incomplete *deviation.IncompleteDistributionError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &incomplete):
		remaining := incomplete.Remaining
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     "Deviation not fully distributed",
			Details:   err.Error(),
			Remaining: &remaining,
		})
	case errors.As(err, &invalid),
		deviation.IsClientError(err),
		errors.Is(err, ladder.ErrInvalidLadder),
		errors.Is(err, ladder.ErrNegativeHours):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, sessions.ErrNotFound), timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, deviation.ErrSessionCommitted),
		errors.Is(err, timesheet.ErrEntryResolved),
		errors.Is(err, timesheet.ErrSessionMismatch),
		errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

// keyedMutex serializes edits to one session inside this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request count and latency
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Employees, tenure, balances, ledger
  /api/time-entries/*   Shifts and opening a deviation review
  /api/deviation/*      Deviation sessions
  /api/transactions/*   Recent bookings
  /api/ladders/*        Wage ladders
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Admin operations
  /metrics              Prometheus exposition
  /healthz              Liveness and database ping

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// Monitor adds GET /api/admin/review-status when set.
	Monitor *ReviewMonitor
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/tenure", h.GetTenure)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Get("/{id}/ledger.xlsx", h.ExportLedger)
			r.Get("/{id}/time-entries", h.ListEmployeeTimeEntries)
		})

		// Time entry routes
		r.Route("/time-entries", func(r chi.Router) {
			r.Post("/", h.CreateTimeEntry)
			r.Get("/pending", h.ListPendingEntries)
			r.Get("/{id}", h.GetTimeEntry)
			r.Get("/{id}/bookings", h.GetEntryBookings)
			r.Post("/{id}/deviation", h.OpenSession)
		})

		// Deviation session routes
		r.Route("/deviation/{sid}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Put("/buckets/{category}", h.SetBucket)
			r.Post("/assign/{category}", h.AssignAll)
			r.Post("/reset", h.ResetSession)
			r.Post("/commit", h.CommitSession)
		})

		r.Get("/transactions/recent", h.RecentTransactions)

		// Ladder routes
		r.Route("/ladders", func(r chi.Router) {
			r.Get("/", h.ListLadders)
			r.Post("/", h.CreateLadder)
			r.Get("/{id}", h.GetLadder)
			r.Delete("/{id}", h.DeleteLadder)
			r.Post("/{id}/resolve", h.ResolveLadder)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		if opts.Monitor != nil {
			r.Get("/admin/review-status", opts.Monitor.ReviewStatus)
		}
	})

	return r
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "driver": h.Store.Driver()})
}

/*
scheduler.go - Pending review monitor

PURPOSE:
  Periodically counts time entries still waiting for deviation review,
  publishes the count as the pending_time_entries gauge and logs entries
  that have been pending for longer than StaleAfter.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: never resolves or modifies entries
  - The last report is kept for the admin endpoint

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - StaleAfter:    Age of a pending shift worth flagging (default: 7 days)
  - Enabled:       Whether the monitor is active (default: true)

USAGE:
  monitor := NewReviewMonitor(store, handler.Metrics)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - metrics.go: PendingEntries gauge
  - handlers.go: ListPendingEntries endpoint
*/
package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/warp/workforce-engine/store/sqlstore"
)

// ReviewReport is the result of one check.
type ReviewReport struct {
	CheckedAt     time.Time `json:"checked_at"`
	Pending       int       `json:"pending"`
	Stale         int       `json:"stale"`
	OldestEntry   string    `json:"oldest_entry,omitempty"`
	OldestPlanned time.Time `json:"oldest_planned"`
}

// ReviewMonitor watches the review backlog.
type ReviewMonitor struct {
	Store         *sqlstore.Store
	Metrics       *Metrics
	CheckInterval time.Duration
	StaleAfter    time.Duration
	Enabled       bool

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *ReviewReport
}

// NewReviewMonitor creates a new monitor.
func NewReviewMonitor(store *sqlstore.Store, metrics *Metrics) *ReviewMonitor {
	return &ReviewMonitor{
		Store:         store,
		Metrics:       metrics,
		CheckInterval: 15 * time.Minute,
		StaleAfter:    7 * 24 * time.Hour,
		Enabled:       true,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the monitor.
func (rm *ReviewMonitor) Start() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.Enabled {
		log.Println("[Monitor] Disabled, not starting")
		return
	}

	rm.ticker = time.NewTicker(rm.CheckInterval)
	rm.wg.Add(1)

	go rm.run(rm.ticker)

	log.Printf("[Monitor] Started with check interval: %v", rm.CheckInterval)
}

// Stop stops the monitor.
func (rm *ReviewMonitor) Stop() {
	rm.mu.Lock()
	ticker := rm.ticker
	rm.ticker = nil
	rm.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(rm.stop)
		rm.wg.Wait()
		log.Println("[Monitor] Stopped")
	}
}

func (rm *ReviewMonitor) run(ticker *time.Ticker) {
	defer rm.wg.Done()

	// Run immediately on start
	rm.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			rm.RunNow(context.Background())
		case <-rm.stop:
			return
		}
	}
}

// RunNow performs one check and returns its report.
func (rm *ReviewMonitor) RunNow(ctx context.Context) (ReviewReport, error) {
	now := rm.now()
	entries, err := rm.Store.ListPendingEntries(ctx)
	if err != nil {
		log.Printf("[Monitor] Failed to list pending entries: %v", err)
		return ReviewReport{}, err
	}

	report := ReviewReport{CheckedAt: now.UTC(), Pending: len(entries)}
	for _, e := range entries {
		if now.Sub(e.PlannedStart) > rm.StaleAfter {
			report.Stale++
		}
	}
	// entries come back oldest first
	if len(entries) > 0 {
		report.OldestEntry = entries[0].ID
		report.OldestPlanned = entries[0].PlannedStart
	}

	if rm.Metrics != nil {
		rm.Metrics.PendingEntries.Set(float64(report.Pending))
	}
	if report.Stale > 0 {
		log.Printf("[Monitor] %d of %d pending entries older than %v (oldest %s)",
			report.Stale, report.Pending, rm.StaleAfter, report.OldestEntry)
	}

	rm.mu.Lock()
	rm.last = &report
	rm.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent report, or nil before the first check.
func (rm *ReviewMonitor) LastReport() *ReviewReport {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.last == nil {
		return nil
	}
	r := *rm.last
	return &r
}

// ReviewStatus runs a check and returns it.
func (rm *ReviewMonitor) ReviewStatus(w http.ResponseWriter, r *http.Request) {
	report, err := rm.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check pending entries", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

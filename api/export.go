/*
export.go - Ledger export as an Excel workbook

PURPOSE:
  Payroll reconciles deviation bookings in spreadsheets. The export has two
  sheets:

    Ledger:   one row per booking, oldest first
    Balances: one row per deviation category, zeros included

SEE ALSO:
  - handlers.go: GetLedger (same data as JSON)
*/
package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/timesheet"
	"github.com/xuri/excelize/v2"
)

const (
	ledgerSheet   = "Ledger"
	balancesSheet = "Balances"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ledgerHeader = []any{"Date", "Category", "Minutes", "Type", "Time entry", "Reason", "Notes", "Booked by", "Idempotency key"}

// ExportLedger streams an employee's ledger as .xlsx.
func (h *Handler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, ok := h.requireEmployee(w, r, id)
	if !ok {
		return
	}
	txs, err := h.Store.LoadByEntity(r.Context(), generic.EntityID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}
	balances, err := h.Tenure.Balances(r.Context(), id, generic.At(h.now()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	f, err := buildLedgerWorkbook(*emp, txs, balances)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%s.xlsx"`, id))
	if err := f.Write(w); err != nil {
		// headers are gone, nothing left to report to the client
		log.Printf("[Export] ledger %s: %v", id, err)
	}
}

func buildLedgerWorkbook(emp timesheet.Employee, txs []generic.Transaction, balances []timesheet.CategoryBalance) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillLedgerWorkbook(f, emp, txs, balances); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func fillLedgerWorkbook(f *excelize.File, emp timesheet.Employee, txs []generic.Transaction, balances []timesheet.CategoryBalance) error {
	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(balancesSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(ledgerSheet, "A1", &ledgerHeader); err != nil {
		return err
	}
	for i, tx := range txs {
		dto := toTransactionDTO(tx)
		row := []any{
			tx.EffectiveAt.Time.Format(time.DateTime),
			dto.Label,
			tx.Delta.Value.InexactFloat64(),
			dto.Type,
			dto.ReferenceID,
			dto.Reason,
			dto.Notes,
			dto.CreatedBy,
			dto.IdempotencyKey,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(ledgerSheet, "A1", "I1", bold); err != nil {
		return err
	}

	title := []any{"Employee", emp.Name, string(emp.ID)}
	header := []any{"Category", "Minutes", "Hours", "Bookings"}
	if err := f.SetSheetRow(balancesSheet, "A1", &title); err != nil {
		return err
	}
	if err := f.SetSheetRow(balancesSheet, "A3", &header); err != nil {
		return err
	}
	for i, b := range balances {
		row := []any{b.Category.Label(), b.Minutes.InexactFloat64(), b.Hours.InexactFloat64(), b.Entries}
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(balancesSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(balancesSheet, "A3", "D3", bold)
}

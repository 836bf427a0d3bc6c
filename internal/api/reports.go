package api

import (
	"database/sql"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/csvio"
	"github.com/mvidmar/knjiznica/internal/report"
	"github.com/mvidmar/knjiznica/internal/snapshot"
)

// ReportsHandler handles reporting and bulk data endpoints.
type ReportsHandler struct {
	DB         *sql.DB
	FinePerDay decimal.Decimal
	DailyFee   decimal.Decimal
	GraceDays  int
}

// Borrowing handles GET /api/reports/borrowing.
func (h *ReportsHandler) Borrowing(w http.ResponseWriter, r *http.Request) {
	rep, err := report.BorrowingReport(r.Context(), h.DB, time.Now(), h.FinePerDay)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// BorrowingCSV handles GET /api/reports/borrowing/csv.
func (h *ReportsHandler) BorrowingCSV(w http.ResponseWriter, r *http.Request) {
	rep, err := report.BorrowingReport(r.Context(), h.DB, time.Now(), h.FinePerDay)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="borrowing_report.csv"`)
	if err := csvio.ExportReportSummary(w, rep); err != nil {
		writeError(w, err)
	}
}

// Overdue handles GET /api/reports/overdue.
func (h *ReportsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	summary, err := report.OverdueNotifications(r.Context(), h.DB, time.Now(), h.DailyFee, h.GraceDays)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// ImportCatalog handles POST /api/catalog/import with a CSV body.
func (h *ReportsHandler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	count, err := csvio.ImportCatalog(r.Context(), h.DB, io.LimitReader(r.Body, 32<<20))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]int{"imported": count})
}

// SnapshotHandler saves and restores the library state file.
type SnapshotHandler struct {
	DB   *sql.DB
	Path string
}

// Save handles POST /api/snapshot/save.
func (h *SnapshotHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := snapshot.Save(r.Context(), h.DB, h.Path); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"path": h.Path})
}

// Load handles POST /api/snapshot/load.
func (h *SnapshotHandler) Load(w http.ResponseWriter, r *http.Request) {
	loaded, err := snapshot.Load(r.Context(), h.DB, h.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if !loaded {
		jsonError(w, http.StatusNotFound, "no snapshot file")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"path": h.Path})
}

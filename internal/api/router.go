package api

import (
	"database/sql"
	"net/http"

	"github.com/shopspring/decimal"
)

// Config carries the tunables handlers need.
type Config struct {
	DailyRate    decimal.Decimal
	FinePerDay   decimal.Decimal
	GraceDays    int
	SnapshotPath string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, cfg Config) http.Handler {
	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{DB: db}
	membersHandler := &MembersHandler{DB: db}
	lendingHandler := &LendingHandler{DB: db, DailyRate: cfg.DailyRate, GraceDays: cfg.GraceDays}
	reportsHandler := &ReportsHandler{DB: db, FinePerDay: cfg.FinePerDay, DailyFee: cfg.DailyRate, GraceDays: cfg.GraceDays}
	snapshotHandler := &SnapshotHandler{DB: db, Path: cfg.SnapshotPath}

	// Catalog.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("POST /api/items", itemsHandler.Create)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /api/items/{id}", itemsHandler.Update)
	mux.HandleFunc("POST /api/items/{id}/ratings", itemsHandler.Rate)
	mux.HandleFunc("PUT /api/items/{id}/image", itemsHandler.UploadImage)
	mux.HandleFunc("GET /api/items/{id}/image", itemsHandler.GetImage)
	mux.HandleFunc("GET /api/availability", itemsHandler.Availability)
	mux.HandleFunc("POST /api/catalog/import", reportsHandler.ImportCatalog)

	// Members.
	mux.HandleFunc("GET /api/members", membersHandler.List)
	mux.HandleFunc("POST /api/members", membersHandler.Create)
	mux.HandleFunc("GET /api/members/count", membersHandler.Count)
	mux.HandleFunc("GET /api/members/{id}", membersHandler.Get)
	mux.HandleFunc("PUT /api/members/{id}/preferences", membersHandler.UpdatePreferences)
	mux.HandleFunc("PUT /api/members/{id}/active", membersHandler.SetActive)
	mux.HandleFunc("POST /api/members/{id}/payments", membersHandler.Pay)
	mux.HandleFunc("GET /api/members/{id}/recommendations", membersHandler.Recommendations)

	// Lending.
	mux.HandleFunc("POST /api/loans", lendingHandler.Checkout)
	mux.HandleFunc("POST /api/returns", lendingHandler.Return)
	mux.HandleFunc("POST /api/reservations", lendingHandler.Reserve)
	mux.HandleFunc("POST /api/reservations/cancel", lendingHandler.CancelReservation)
	mux.HandleFunc("POST /api/items/{id}/notify-next", lendingHandler.NotifyNext)
	mux.HandleFunc("POST /api/reminders", lendingHandler.ScheduleReminder)
	mux.HandleFunc("GET /api/reminders", lendingHandler.ListReminders)

	// Reports and snapshots.
	mux.HandleFunc("GET /api/reports/borrowing", reportsHandler.Borrowing)
	mux.HandleFunc("GET /api/reports/borrowing/csv", reportsHandler.BorrowingCSV)
	mux.HandleFunc("GET /api/reports/overdue", reportsHandler.Overdue)
	mux.HandleFunc("POST /api/snapshot/save", snapshotHandler.Save)
	mux.HandleFunc("POST /api/snapshot/load", snapshotHandler.Load)

	return mux
}

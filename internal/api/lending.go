package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/lending"
	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/store"
)

// LendingHandler handles checkout, return and reservation endpoints.
type LendingHandler struct {
	DB        *sql.DB
	DailyRate decimal.Decimal
	GraceDays int
}

type loanRequest struct {
	MemberID string `json:"member_id"`
	ItemID   string `json:"item_id"`
	LoanDays int    `json:"loan_days"`
}

type reservationRequest struct {
	MemberID string `json:"member_id"`
	ItemID   string `json:"item_id"`
}

type reminderRequest struct {
	MemberID string    `json:"member_id"`
	ItemID   string    `json:"item_id"`
	DueAt    time.Time `json:"due_at"`
}

// Checkout handles POST /api/loans.
func (h *LendingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	due, err := lending.Checkout(r.Context(), h.DB, req.MemberID, req.ItemID, req.LoanDays, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{
		"member_id": req.MemberID,
		"item_id":   req.ItemID,
		"due_at":    due,
	})
}

// Return handles POST /api/returns.
func (h *LendingHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := lending.Return(r.Context(), h.DB, req.MemberID, req.ItemID, time.Now(), h.DailyRate, h.GraceDays)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Reserve handles POST /api/reservations.
func (h *LendingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := lending.Reserve(r.Context(), h.DB, req.MemberID, req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// CancelReservation handles POST /api/reservations/cancel.
func (h *LendingHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := lending.CancelReservation(r.Context(), h.DB, req.MemberID, req.ItemID); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "reservation cancelled"})
}

// NotifyNext handles POST /api/items/{id}/notify-next.
func (h *LendingHandler) NotifyNext(w http.ResponseWriter, r *http.Request) {
	result, err := lending.NotifyNext(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// ScheduleReminder handles POST /api/reminders.
func (h *LendingHandler) ScheduleReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := store.ScheduleReminder(r.Context(), h.DB, req.MemberID, req.ItemID, req.DueAt)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "member or item not found")
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"message": "reminder scheduled"})
}

// ListReminders handles GET /api/reminders.
func (h *LendingHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := store.ListReminders(r.Context(), h.DB)
	if err != nil {
		writeError(w, err)
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	jsonResponse(w, http.StatusOK, reminders)
}

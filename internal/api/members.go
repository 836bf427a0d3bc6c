package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/lending"
	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/recommend"
	"github.com/mvidmar/knjiznica/internal/store"
)

// MembersHandler handles member endpoints.
type MembersHandler struct {
	DB *sql.DB
}

type createMemberRequest struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	PreferredTags    []string `json:"preferences_tags"`
	PreferredAuthors []string `json:"preferences_authors"`
}

type preferencesRequest struct {
	Tags    []string `json:"tags"`
	Authors []string `json:"authors"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type paymentRequest struct {
	Amount string `json:"amount"`
}

// List handles GET /api/members.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := store.ListMembers(r.Context(), h.DB)
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	jsonResponse(w, http.StatusOK, members)
}

// Create handles POST /api/members. New members start active with a zero
// balance.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := store.CreateMember(r.Context(), h.DB, model.Member{
		ID:               req.ID,
		Name:             req.Name,
		Email:            req.Email,
		Active:           true,
		PreferredTags:    req.PreferredTags,
		PreferredAuthors: req.PreferredAuthors,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, member)
}

// Get handles GET /api/members/{id}.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := store.GetMember(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if member == nil {
		jsonError(w, http.StatusNotFound, "member not found")
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// Count handles GET /api/members/count?active=true.
func (h *MembersHandler) Count(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if s := r.URL.Query().Get("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid active filter")
			return
		}
		activeOnly = v
	}

	count, err := store.MemberCount(r.Context(), h.DB, activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": count})
}

// UpdatePreferences handles PUT /api/members/{id}/preferences.
func (h *MembersHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if err := store.UpdateMemberPreferences(r.Context(), h.DB, id, req.Tags, req.Authors); err != nil {
		writeError(w, err)
		return
	}

	member, err := store.GetMember(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// SetActive handles PUT /api/members/{id}/active.
func (h *MembersHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetMemberActive(r.Context(), h.DB, r.PathValue("id"), req.Active); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// Pay handles POST /api/members/{id}/payments.
func (h *MembersHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	balance, err := lending.PayBalance(r.Context(), h.DB, r.PathValue("id"), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"paid":    amount.StringFixed(2),
		"balance": balance.StringFixed(2),
	})
}

// Recommendations handles GET /api/members/{id}/recommendations?limit=N.
func (h *MembersHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	recs, err := recommend.Recommend(r.Context(), h.DB, r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	jsonResponse(w, http.StatusOK, recs)
}

package api

import (
	"database/sql"
	"io"
	"net/http"
	"strconv"

	"github.com/mvidmar/knjiznica/internal/imaging"
	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/search"
	"github.com/mvidmar/knjiznica/internal/store"
)

// ItemsHandler handles catalog endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type createItemRequest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Genre           string   `json:"genre"`
	MediaType       string   `json:"media_type"`
	Tags            []string `json:"tags"`
	CopiesTotal     int      `json:"copies_total"`
	CopiesAvailable int      `json:"copies_available"`
}

type updateItemRequest struct {
	Title  string   `json:"title"`
	Author string   `json:"author"`
	Genre  string   `json:"genre"`
	Tags   []string `json:"tags"`
}

type rateItemRequest struct {
	MemberID string `json:"member_id"`
	Stars    int    `json:"stars"`
}

// List handles GET /api/items. Free-text queries are normalized before
// matching; author, genre and available narrow the results further.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := params.Get("q")
	author := params.Get("author")
	genre := params.Get("genre")

	var available *bool
	if s := params.Get("available"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid available filter")
			return
		}
		available = &v
	}

	if q != "" {
		q = search.Normalize(q).Normalized
	}

	items, err := store.SearchItems(r.Context(), h.DB, q, author, genre, available)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, model.Item{
		ID:              req.ID,
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		MediaType:       req.MediaType,
		Tags:            req.Tags,
		CopiesTotal:     req.CopiesTotal,
		CopiesAvailable: req.CopiesAvailable,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if err := store.UpdateItem(r.Context(), h.DB, id, req.Title, req.Author, req.Genre, req.Tags); err != nil {
		writeError(w, err)
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Rate handles POST /api/items/{id}/ratings.
func (h *ItemsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req rateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	avg, updated, err := store.RateItem(r.Context(), h.DB, r.PathValue("id"), req.MemberID, req.Stars)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"average_rating": avg,
		"updated":        updated,
	})
}

// Availability handles GET /api/availability?title=...
func (h *ItemsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		jsonError(w, http.StatusBadRequest, "title required")
		return
	}

	ok, err := store.IsTitleAvailable(r.Context(), h.DB, title)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"title": title, "available": ok})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	cover, err := imaging.PrepareCover(data)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, r.PathValue("id"), cover.Data, cover.MIME); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemImage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

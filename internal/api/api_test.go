package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/db"
	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, context.Context) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, Config{
		DailyRate:    decimal.RequireFromString("0.25"),
		FinePerDay:   decimal.RequireFromString("0.5"),
		SnapshotPath: t.TempDir() + "/state.json",
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	if _, err := store.CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi",
		Tags: []string{"classic"}, CopiesTotal: 2, CopiesAvailable: 2,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	if _, err := store.CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}
	return server, ctx
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, target any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp
}

func TestItemsEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/items",
		`{"id":"EB200","title":"Neuromancer","author":"William Gibson","copies_total":1,"copies_available":1}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var items []model.Item
	getJSON(t, server.URL+"/api/items?q=dune", &items)
	if len(items) != 1 || items[0].ID != "BK101" {
		t.Errorf("unexpected search results: %v", items)
	}

	var item model.Item
	resp = getJSON(t, server.URL+"/api/items/EB200", &item)
	if resp.StatusCode != http.StatusOK || item.MediaType != model.MediaTypeEBook {
		t.Errorf("unexpected item: status=%d item=%+v", resp.StatusCode, item)
	}

	resp = getJSON(t, server.URL+"/api/items/BK999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/api/items", `{"id":"XX1","title":"Bad"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", resp.StatusCode)
	}
}

func TestLendingEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/loans", `{"member_id":"M1","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for checkout, got %d", resp.StatusCode)
	}

	// Second checkout of the same item conflicts.
	resp = postJSON(t, server.URL+"/api/loans", `{"member_id":"M1","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for double checkout, got %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/api/returns", `{"member_id":"M1","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for return, got %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/api/loans", `{"member_id":"M999","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown member, got %d", resp.StatusCode)
	}
}

func TestReservationEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/reservations", `{"member_id":"M1","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for reserve, got %d", resp.StatusCode)
	}

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding reserve response: %v", err)
	}
	if result["status"] != "reserved" {
		t.Errorf("expected reserved status, got %v", result)
	}

	resp = postJSON(t, server.URL+"/api/reservations/cancel", `{"member_id":"M1","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for cancel, got %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/api/reservations/cancel", `{"member_id":"M1","item_id":"BK101"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for repeated cancel, got %d", resp.StatusCode)
	}
}

func TestMemberEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/members",
		`{"id":"M2","name":"Bor","email":"bor@example.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var count map[string]int
	getJSON(t, server.URL+"/api/members/count?active=true", &count)
	if count["count"] != 2 {
		t.Errorf("expected 2 active members, got %d", count["count"])
	}

	resp = postJSON(t, server.URL+"/api/members/M1/payments", `{"amount":"-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for negative payment, got %d", resp.StatusCode)
	}

	var recs []map[string]any
	resp = getJSON(t, server.URL+"/api/members/M1/recommendations", &recs)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for recommendations, got %d", resp.StatusCode)
	}
}

func TestReportAndSnapshotEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	postJSON(t, server.URL+"/api/loans", `{"member_id":"M1","item_id":"BK101"}`)

	var rep map[string]any
	resp := getJSON(t, server.URL+"/api/reports/borrowing", &rep)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for report, got %d", resp.StatusCode)
	}
	if rep["total_books_borrowed"].(float64) != 1 {
		t.Errorf("unexpected report: %v", rep)
	}

	resp, err := http.Get(server.URL + "/api/reports/borrowing/csv")
	if err != nil {
		t.Fatalf("GET csv: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.HasPrefix(buf.String(), "total_books_borrowed,") {
		t.Errorf("unexpected csv output: %q", buf.String())
	}

	resp = postJSON(t, server.URL+"/api/snapshot/save", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for snapshot save, got %d", resp.StatusCode)
	}
	resp = postJSON(t, server.URL+"/api/snapshot/load", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for snapshot load, got %d", resp.StatusCode)
	}
}

func TestImportEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	csv := "id,title,author,genre,media_type,copies_total,copies_available\nDV300,Heat,Michael Mann,Crime,DVD,1,1\n"
	resp, err := http.Post(server.URL+"/api/catalog/import", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("POST import: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for import, got %d", resp.StatusCode)
	}

	var item model.Item
	getJSON(t, server.URL+"/api/items/DV300", &item)
	if item.Title != "Heat" {
		t.Errorf("unexpected imported item: %+v", item)
	}
}

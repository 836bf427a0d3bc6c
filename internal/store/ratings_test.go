package store

import (
	"context"
	"errors"
	"testing"

	"github.com/mvidmar/knjiznica/internal/db"
	"github.com/mvidmar/knjiznica/internal/model"
)

func TestRateItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", CopiesTotal: 1, CopiesAvailable: 1,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	for _, id := range []string{"M1", "M2"} {
		if _, err := CreateMember(ctx, database, model.Member{
			ID: id, Name: "Member " + id, Email: id + "@example.com", Active: true,
		}); err != nil {
			t.Fatalf("creating member %s: %v", id, err)
		}
	}

	avg, updated, err := RateItem(ctx, database, "BK101", "M1", 4)
	if err != nil {
		t.Fatalf("rating item: %v", err)
	}
	if updated {
		t.Error("first rating should not count as an update")
	}
	if avg != 4 {
		t.Errorf("expected average 4, got %v", avg)
	}

	avg, _, err = RateItem(ctx, database, "BK101", "M2", 3)
	if err != nil {
		t.Fatalf("rating item: %v", err)
	}
	if avg != 3.5 {
		t.Errorf("expected average 3.5, got %v", avg)
	}

	// Re-rating replaces the member's previous stars.
	avg, updated, err = RateItem(ctx, database, "BK101", "M1", 5)
	if err != nil {
		t.Fatalf("re-rating item: %v", err)
	}
	if !updated {
		t.Error("expected re-rating to report an update")
	}
	if avg != 4 {
		t.Errorf("expected average 4 after re-rating, got %v", avg)
	}

	item, err := GetItem(ctx, database, "BK101")
	if err != nil {
		t.Fatalf("getting item: %v", err)
	}
	if item.AvgRating == nil || *item.AvgRating != 4 {
		t.Errorf("expected cached average 4, got %v", item.AvgRating)
	}
}

func TestRateItemValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", CopiesTotal: 1, CopiesAvailable: 1,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	if _, err := CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}

	for _, stars := range []int{0, 6, -1} {
		if _, _, err := RateItem(ctx, database, "BK101", "M1", stars); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation for %d stars, got %v", stars, err)
		}
	}
	if _, _, err := RateItem(ctx, database, "BK999", "M1", 3); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing item, got %v", err)
	}
	if _, _, err := RateItem(ctx, database, "BK101", "M999", 3); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing member, got %v", err)
	}
}

func TestItemRatings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", CopiesTotal: 1, CopiesAvailable: 1,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	for _, id := range []string{"M1", "M2"} {
		if _, err := CreateMember(ctx, database, model.Member{
			ID: id, Name: "Member " + id, Email: id + "@example.com", Active: true,
		}); err != nil {
			t.Fatalf("creating member %s: %v", id, err)
		}
	}
	if _, _, err := RateItem(ctx, database, "BK101", "M1", 4); err != nil {
		t.Fatalf("rating: %v", err)
	}
	if _, _, err := RateItem(ctx, database, "BK101", "M2", 2); err != nil {
		t.Fatalf("rating: %v", err)
	}

	ratings, err := ItemRatings(ctx, database, "BK101")
	if err != nil {
		t.Fatalf("listing ratings: %v", err)
	}
	if len(ratings) != 2 || ratings["M1"] != 4 || ratings["M2"] != 2 {
		t.Errorf("unexpected ratings: %v", ratings)
	}
}

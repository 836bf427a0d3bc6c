package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/mvidmar/knjiznica/internal/model"
)

// RateItem records a 1-5 star rating by a member and recomputes the item's
// cached average. A member re-rating an item replaces their previous value;
// updated reports whether that happened.
func RateItem(ctx context.Context, db *sql.DB, itemID, memberID string, stars int) (avg float64, updated bool, err error) {
	if stars < 1 || stars > 5 {
		return 0, false, fmt.Errorf("%w: rating must be between 1 and 5 stars", model.ErrValidation)
	}
	itemID = model.NormalizeItemID(itemID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`, itemID).Scan(&exists); err != nil {
		return 0, false, fmt.Errorf("checking item: %w", err)
	}
	if !exists {
		return 0, false, fmt.Errorf("%w: item %s", model.ErrNotFound, itemID)
	}
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = ?)`, memberID).Scan(&exists); err != nil {
		return 0, false, fmt.Errorf("checking member: %w", err)
	}
	if !exists {
		return 0, false, fmt.Errorf("%w: member %s", model.ErrNotFound, memberID)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ratings WHERE item_id = ? AND member_id = ?)`,
		itemID, memberID).Scan(&updated); err != nil {
		return 0, false, fmt.Errorf("checking previous rating: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ratings (item_id, member_id, stars) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, member_id) DO UPDATE SET stars = excluded.stars`,
		itemID, memberID, stars,
	)
	if err != nil {
		return 0, false, fmt.Errorf("recording rating: %w", err)
	}

	var mean float64
	if err := tx.QueryRowContext(ctx,
		`SELECT AVG(stars) FROM ratings WHERE item_id = ?`, itemID).Scan(&mean); err != nil {
		return 0, false, fmt.Errorf("computing average rating: %w", err)
	}
	avg = math.Round(mean*100) / 100

	if _, err := tx.ExecContext(ctx, `UPDATE items SET avg_rating = ? WHERE id = ?`, avg, itemID); err != nil {
		return 0, false, fmt.Errorf("caching average rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing rating: %w", err)
	}
	return avg, updated, nil
}

// ItemRatings returns the ratings for one item keyed by member ID.
func ItemRatings(ctx context.Context, db *sql.DB, itemID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT member_id, stars FROM ratings WHERE item_id = ?`, model.NormalizeItemID(itemID),
	)
	if err != nil {
		return nil, fmt.Errorf("getting ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]int)
	for rows.Next() {
		var memberID string
		var stars int
		if err := rows.Scan(&memberID, &stars); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings[memberID] = stars
	}
	return ratings, rows.Err()
}

// AllRatings returns every rating keyed by item ID then member ID.
func AllRatings(ctx context.Context, db *sql.DB) (map[string]map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT item_id, member_id, stars FROM ratings`)
	if err != nil {
		return nil, fmt.Errorf("getting ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]map[string]int)
	for rows.Next() {
		var itemID, memberID string
		var stars int
		if err := rows.Scan(&itemID, &memberID, &stars); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		if ratings[itemID] == nil {
			ratings[itemID] = make(map[string]int)
		}
		ratings[itemID][memberID] = stars
	}
	return ratings, rows.Err()
}

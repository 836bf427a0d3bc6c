// Package recommend scores catalog items against a member's preferences and
// borrowing history.
package recommend

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/store"
)

// DefaultLimit caps a recommendation list when the caller does not ask for a
// specific length.
const DefaultLimit = 10

// Recommendation is a scored catalog item.
type Recommendation struct {
	ItemID string  `json:"item_id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

// Recommend returns up to limit items the member has not borrowed, ordered by
// score. Items score a point per tag shared with the member's preferred tags
// or with tags seen in their borrowing history, 1.5 for a preferred author,
// 0.5 for an author they borrowed before and 0.3 when a copy is available
// (minus 1.0 when none is). Items scoring zero or below are omitted.
func Recommend(ctx context.Context, db *sql.DB, memberID string, limit int) ([]Recommendation, error) {
	member, err := store.GetMember(ctx, db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", model.ErrNotFound, memberID)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	items, err := store.ListItems(ctx, db)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	borrowed := make(map[string]bool, len(member.Loans))
	for itemID := range member.Loans {
		borrowed[itemID] = true
	}
	if len(borrowed) == 0 {
		// Members restored without loan records still carry ledger history.
		entries, err := store.ListLedger(ctx, db)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.MemberID == memberID {
				borrowed[e.ItemID] = true
			}
		}
	}

	prefTags := make(map[string]bool, len(member.PreferredTags))
	for _, tag := range member.PreferredTags {
		prefTags[tag] = true
	}
	prefAuthors := make(map[string]bool, len(member.PreferredAuthors))
	for _, author := range member.PreferredAuthors {
		prefAuthors[author] = true
	}

	historyTags := make(map[string]bool)
	borrowedAuthors := make(map[string]bool)
	for itemID := range borrowed {
		item, ok := byID[itemID]
		if !ok {
			continue
		}
		for _, tag := range item.Tags {
			historyTags[tag] = true
		}
		if item.Author != "" {
			borrowedAuthors[item.Author] = true
		}
	}

	var scored []Recommendation
	for _, item := range items {
		if borrowed[item.ID] {
			continue
		}
		score := scoreItem(item, prefTags, prefAuthors, historyTags, borrowedAuthors)
		if score > 0 {
			scored = append(scored, Recommendation{ItemID: item.ID, Title: item.Title, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Title != scored[j].Title {
			return scored[i].Title < scored[j].Title
		}
		return scored[i].ItemID < scored[j].ItemID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func scoreItem(item model.Item, prefTags, prefAuthors, historyTags, borrowedAuthors map[string]bool) float64 {
	var score float64
	for _, tag := range item.Tags {
		if prefTags[tag] || historyTags[tag] {
			score++
		}
	}
	if prefAuthors[item.Author] {
		score += 1.5
	}
	if item.Author != "" && borrowedAuthors[item.Author] {
		score += 0.5
	}
	if item.Available() {
		score += 0.3
	} else {
		score -= 1.0
	}
	return score
}

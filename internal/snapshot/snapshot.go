// Package snapshot saves and restores the whole library state as a single
// JSON file.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mvidmar/knjiznica/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is the on-disk snapshot shape. Timestamps are RFC 3339 strings and
// tag or preference sets become ordered lists.
type State struct {
	Catalog        []itemState               `json:"catalog"`
	Members        map[string]memberState    `json:"members"`
	Loans          []ledgerState             `json:"loans"`
	Reminders      []reminderState           `json:"reminders"`
	Reservations   map[string][]string       `json:"reservations"`
	Ratings        map[string]map[string]int `json:"ratings"`
	AverageRatings map[string]float64        `json:"average_ratings"`
}

type itemState struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Genre           string   `json:"genre"`
	MediaType       string   `json:"media_type"`
	Tags            []string `json:"tags"`
	CopiesTotal     int      `json:"copies_total"`
	CopiesAvailable int      `json:"copies_available"`
	Waitlist        []string `json:"waitlist"`
}

type memberState struct {
	Name             string               `json:"name"`
	Email            string               `json:"email"`
	Active           bool                 `json:"active"`
	Balance          string               `json:"balance"`
	PreferredTags    []string             `json:"preferences_tags"`
	PreferredAuthors []string             `json:"preferences_authors"`
	Loans            map[string]loanState `json:"loans"`
}

type loanState struct {
	ItemID     string  `json:"item_id"`
	BorrowedAt string  `json:"borrowed_at"`
	DueAt      string  `json:"due_at"`
	ReturnedAt *string `json:"returned_at"`
}

type ledgerState struct {
	ID         string  `json:"id"`
	MemberID   string  `json:"member_id"`
	ItemID     string  `json:"item_id"`
	BorrowedAt string  `json:"borrowed_at"`
	DueAt      string  `json:"due_at"`
	Returned   bool    `json:"returned"`
	ReturnedAt *string `json:"returned_at"`
}

type reminderState struct {
	MemberID string `json:"member_id"`
	ItemID   string `json:"item_id"`
	DueAt    string `json:"due_at"`
	Message  string `json:"message"`
}

// Save writes the current database contents to path as indented JSON.
func Save(ctx context.Context, db *sql.DB, path string) error {
	state, err := collect(ctx, db)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load replaces the database contents with the snapshot at path. A missing
// file is not an error; Load reports false and leaves the database alone.
func Load(ctx context.Context, db *sql.DB, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading snapshot: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := restore(ctx, db, &state); err != nil {
		return false, err
	}
	return true, nil
}

func collect(ctx context.Context, db *sql.DB) (*State, error) {
	state := &State{
		Members:        make(map[string]memberState),
		Reservations:   make(map[string][]string),
		AverageRatings: make(map[string]float64),
	}

	items, err := store.ListItems(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		state.Catalog = append(state.Catalog, itemState{
			ID:              item.ID,
			Title:           item.Title,
			Author:          item.Author,
			Genre:           item.Genre,
			MediaType:       item.MediaType,
			Tags:            item.Tags,
			CopiesTotal:     item.CopiesTotal,
			CopiesAvailable: item.CopiesAvailable,
			Waitlist:        item.Waitlist,
		})
		if item.AvgRating != nil {
			state.AverageRatings[item.ID] = *item.AvgRating
		}
	}

	members, err := store.ListMembers(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		loans, err := store.GetMemberLoans(ctx, db, m.ID)
		if err != nil {
			return nil, err
		}
		ms := memberState{
			Name:             m.Name,
			Email:            m.Email,
			Active:           m.Active,
			Balance:          m.Balance.StringFixed(2),
			PreferredTags:    m.PreferredTags,
			PreferredAuthors: m.PreferredAuthors,
			Loans:            make(map[string]loanState, len(loans)),
		}
		for itemID, l := range loans {
			ms.Loans[itemID] = loanState{
				ItemID:     l.ItemID,
				BorrowedAt: formatTime(l.BorrowedAt),
				DueAt:      formatTime(l.DueAt),
				ReturnedAt: formatTimePtr(l.ReturnedAt),
			}
		}
		state.Members[m.ID] = ms

		reserved, err := store.GetReservations(ctx, db, m.ID)
		if err != nil {
			return nil, err
		}
		if len(reserved) > 0 {
			state.Reservations[m.ID] = reserved
		}
	}

	entries, err := store.ListLedger(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		state.Loans = append(state.Loans, ledgerState{
			ID:         e.ID,
			MemberID:   e.MemberID,
			ItemID:     e.ItemID,
			BorrowedAt: formatTime(e.BorrowedAt),
			DueAt:      formatTime(e.DueAt),
			Returned:   e.Returned,
			ReturnedAt: formatTimePtr(e.ReturnedAt),
		})
	}

	reminders, err := store.ListReminders(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, r := range reminders {
		state.Reminders = append(state.Reminders, reminderState{
			MemberID: r.MemberID,
			ItemID:   r.ItemID,
			DueAt:    formatTime(r.DueAt),
			Message:  r.Message,
		})
	}

	if state.Ratings, err = store.AllRatings(ctx, db); err != nil {
		return nil, err
	}
	return state, nil
}

// restore clears every table and reinserts the snapshot contents in one
// transaction, so a bad snapshot leaves the database untouched.
func restore(ctx context.Context, db *sql.DB, state *State) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"ratings", "reminders", "reservations", "waitlist", "ledger", "loans",
		"member_pref_authors", "member_pref_tags", "item_tags", "members", "items",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, item := range state.Catalog {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, title, author, genre, media_type, copies_total, copies_available)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Title, item.Author, item.Genre, item.MediaType,
			item.CopiesTotal, item.CopiesAvailable,
		)
		if err != nil {
			return fmt.Errorf("restoring item %s: %w", item.ID, err)
		}
		for _, tag := range item.Tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, item.ID, tag); err != nil {
				return fmt.Errorf("restoring tags for %s: %w", item.ID, err)
			}
		}
	}
	for itemID, avg := range state.AverageRatings {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET avg_rating = ? WHERE id = ?`, avg, itemID); err != nil {
			return fmt.Errorf("restoring average rating for %s: %w", itemID, err)
		}
	}

	for memberID, m := range state.Members {
		balance := m.Balance
		if balance == "" {
			balance = "0.00"
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO members (id, name, email, active, balance) VALUES (?, ?, ?, ?, ?)`,
			memberID, m.Name, m.Email, m.Active, balance,
		)
		if err != nil {
			return fmt.Errorf("restoring member %s: %w", memberID, err)
		}
		for _, tag := range m.PreferredTags {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO member_pref_tags (member_id, tag) VALUES (?, ?)`, memberID, tag); err != nil {
				return fmt.Errorf("restoring preferences for %s: %w", memberID, err)
			}
		}
		for _, author := range m.PreferredAuthors {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO member_pref_authors (member_id, author) VALUES (?, ?)`, memberID, author); err != nil {
				return fmt.Errorf("restoring preferences for %s: %w", memberID, err)
			}
		}
		for itemID, l := range m.Loans {
			borrowed := parseTime(l.BorrowedAt)
			due := parseTime(l.DueAt)
			if borrowed == nil || due == nil {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO loans (member_id, item_id, borrowed_at, due_at, returned_at)
				 VALUES (?, ?, ?, ?, ?)`,
				memberID, itemID, *borrowed, *due, parseTimePtr(l.ReturnedAt),
			)
			if err != nil {
				return fmt.Errorf("restoring loan %s/%s: %w", memberID, itemID, err)
			}
		}
	}

	// Catalog waitlists come after members so the references hold.
	for _, item := range state.Catalog {
		for _, memberID := range item.Waitlist {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO waitlist (item_id, member_id) VALUES (?, ?)`, item.ID, memberID); err != nil {
				return fmt.Errorf("restoring waitlist for %s: %w", item.ID, err)
			}
		}
	}
	for memberID, itemIDs := range state.Reservations {
		for _, itemID := range itemIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO reservations (member_id, item_id) VALUES (?, ?)`, memberID, itemID); err != nil {
				return fmt.Errorf("restoring reservations for %s: %w", memberID, err)
			}
		}
	}

	for _, e := range state.Loans {
		borrowed := parseTime(e.BorrowedAt)
		due := parseTime(e.DueAt)
		if borrowed == nil || due == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger (id, member_id, item_id, borrowed_at, due_at, returned, returned_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.MemberID, e.ItemID, *borrowed, *due, e.Returned, parseTimePtr(e.ReturnedAt),
		)
		if err != nil {
			return fmt.Errorf("restoring ledger entry %s: %w", e.ID, err)
		}
	}

	for _, r := range state.Reminders {
		due := parseTime(r.DueAt)
		if due == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reminders (member_id, item_id, due_at, message) VALUES (?, ?, ?, ?)`,
			r.MemberID, r.ItemID, *due, r.Message,
		)
		if err != nil {
			return fmt.Errorf("restoring reminder: %w", err)
		}
	}

	for itemID, byMember := range state.Ratings {
		for memberID, stars := range byMember {
			if stars < 1 || stars > 5 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO ratings (item_id, member_id, stars) VALUES (?, ?, ?)`,
				itemID, memberID, stars); err != nil {
				return fmt.Errorf("restoring ratings for %s: %w", itemID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot restore: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// parseTime returns nil for empty or unparseable values instead of failing
// the whole restore.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return parseTime(*s)
}

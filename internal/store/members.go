package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/model"
)

// CreateMember registers a new member.
func CreateMember(ctx context.Context, db *sql.DB, member model.Member) (*model.Member, error) {
	member.ID = strings.TrimSpace(member.ID)
	if err := member.Validate(); err != nil {
		return nil, err
	}

	existing, err := GetMember(ctx, db, member.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: member %s already exists", model.ErrValidation, member.ID)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO members (id, name, email, active, balance) VALUES (?, ?, ?, ?, ?)`,
		member.ID, member.Name, member.Email, member.Active, decimal.Zero.StringFixed(2),
	)
	if err != nil {
		return nil, fmt.Errorf("creating member: %w", err)
	}

	if err := replacePreferences(ctx, tx, member.ID, member.PreferredTags, member.PreferredAuthors); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing member: %w", err)
	}

	return GetMember(ctx, db, member.ID)
}

// GetMember returns a member with preferences and loan records, or nil if absent.
func GetMember(ctx context.Context, db *sql.DB, id string) (*model.Member, error) {
	m := &model.Member{}
	var balance string
	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, active, balance, created_at FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Email, &m.Active, &balance, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}

	if m.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing member balance: %w", err)
	}
	if m.PreferredTags, m.PreferredAuthors, err = memberPreferences(ctx, db, id); err != nil {
		return nil, err
	}
	if m.Loans, err = GetMemberLoans(ctx, db, id); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMembers returns all members ordered by ID, without loan records.
func ListMembers(ctx context.Context, db *sql.DB) ([]model.Member, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, email, active, balance, created_at FROM members ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		var balance string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Active, &balance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		if m.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parsing member balance: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range members {
		if members[i].PreferredTags, members[i].PreferredAuthors, err = memberPreferences(ctx, db, members[i].ID); err != nil {
			return nil, err
		}
	}
	return members, nil
}

// SetMemberActive flips a member's active flag.
func SetMemberActive(ctx context.Context, db *sql.DB, id string, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE members SET active = ? WHERE id = ?`, active, id,
	)
	if err != nil {
		return fmt.Errorf("updating member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: member %s", model.ErrNotFound, id)
	}
	return nil
}

// UpdateMemberPreferences replaces a member's preferred tag and author sets.
func UpdateMemberPreferences(ctx context.Context, db *sql.DB, id string, tags, authors []string) error {
	member, err := GetMember(ctx, db, id)
	if err != nil {
		return err
	}
	if member == nil {
		return fmt.Errorf("%w: member %s", model.ErrNotFound, id)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replacePreferences(ctx, tx, id, tags, authors); err != nil {
		return err
	}
	return tx.Commit()
}

// MemberCount returns the number of members, optionally only active ones.
func MemberCount(ctx context.Context, db *sql.DB, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM members`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	var count int
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return count, nil
}

// GetMemberLoans returns the member's loan records keyed by item ID.
func GetMemberLoans(ctx context.Context, db *sql.DB, memberID string) (map[string]model.Loan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_id, borrowed_at, due_at, returned_at FROM loans WHERE member_id = ?`, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting member loans: %w", err)
	}
	defer rows.Close()

	loans := make(map[string]model.Loan)
	for rows.Next() {
		var l model.Loan
		if err := rows.Scan(&l.ItemID, &l.BorrowedAt, &l.DueAt, &l.ReturnedAt); err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		loans[l.ItemID] = l
	}
	return loans, rows.Err()
}

// GetReservations returns the item IDs a member currently holds reservations
// for, oldest first.
func GetReservations(ctx context.Context, db *sql.DB, memberID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_id FROM reservations WHERE member_id = ? ORDER BY id`, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting reservations: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

func memberPreferences(ctx context.Context, db *sql.DB, memberID string) (tags, authors []string, err error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tag FROM member_pref_tags WHERE member_id = ? ORDER BY tag`, memberID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("getting preferred tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, nil, fmt.Errorf("scanning preferred tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	authorRows, err := db.QueryContext(ctx,
		`SELECT author FROM member_pref_authors WHERE member_id = ? ORDER BY author`, memberID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("getting preferred authors: %w", err)
	}
	defer authorRows.Close()
	for authorRows.Next() {
		var author string
		if err := authorRows.Scan(&author); err != nil {
			return nil, nil, fmt.Errorf("scanning preferred author: %w", err)
		}
		authors = append(authors, author)
	}
	return tags, authors, authorRows.Err()
}

func replacePreferences(ctx context.Context, tx *sql.Tx, memberID string, tags, authors []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM member_pref_tags WHERE member_id = ?`, memberID); err != nil {
		return fmt.Errorf("clearing preferred tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM member_pref_authors WHERE member_id = ?`, memberID); err != nil {
		return fmt.Errorf("clearing preferred authors: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO member_pref_tags (member_id, tag) VALUES (?, ?)`, memberID, tag); err != nil {
			return fmt.Errorf("inserting preferred tag: %w", err)
		}
	}
	for _, author := range authors {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO member_pref_authors (member_id, author) VALUES (?, ?)`, memberID, author); err != nil {
			return fmt.Errorf("inserting preferred author: %w", err)
		}
	}
	return nil
}

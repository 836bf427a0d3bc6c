package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mvidmar/knjiznica/internal/model"
)

// ScheduleReminder records a due-date reminder for a member and item. It
// reports false without error when either side is unknown.
func ScheduleReminder(ctx context.Context, db *sql.DB, memberID, itemID string, dueAt time.Time) (bool, error) {
	itemID = model.NormalizeItemID(itemID)

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = ?)`, memberID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking member: %w", err)
	}
	if !exists {
		return false, nil
	}
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking item: %w", err)
	}
	if !exists {
		return false, nil
	}

	message := fmt.Sprintf("Reminder: Item ID %s is due on %s.", itemID, dueAt.Format("2006-01-02"))
	_, err := db.ExecContext(ctx,
		`INSERT INTO reminders (member_id, item_id, due_at, message) VALUES (?, ?, ?, ?)`,
		memberID, itemID, dueAt, message,
	)
	if err != nil {
		return false, fmt.Errorf("scheduling reminder: %w", err)
	}
	return true, nil
}

// ListReminders returns all reminders in creation order.
func ListReminders(ctx context.Context, db *sql.DB) ([]model.Reminder, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, member_id, item_id, due_at, message, created_at FROM reminders ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		var r model.Reminder
		if err := rows.Scan(&r.ID, &r.MemberID, &r.ItemID, &r.DueAt, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// HasReminder reports whether a reminder for the same member, item and due
// date is already scheduled.
func HasReminder(ctx context.Context, db *sql.DB, memberID, itemID string, dueAt time.Time) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reminders WHERE member_id = ? AND item_id = ? AND due_at = ?)`,
		memberID, model.NormalizeItemID(itemID), dueAt,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking reminder: %w", err)
	}
	return exists, nil
}

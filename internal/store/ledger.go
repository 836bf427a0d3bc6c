package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mvidmar/knjiznica/internal/model"
)

// ListLedger returns every ledger entry in insertion order. The ledger is the
// source of truth for reporting; per-member loan records may be overwritten
// by later borrows but ledger entries never are.
func ListLedger(ctx context.Context, db *sql.DB) ([]model.LedgerEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, member_id, item_id, borrowed_at, due_at, returned, returned_at
		 FROM ledger ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.MemberID, &e.ItemID, &e.BorrowedAt, &e.DueAt, &e.Returned, &e.ReturnedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertLedgerEntry appends an entry verbatim. Used by snapshot restore; the
// lending engine appends its own entries transactionally.
func InsertLedgerEntry(ctx context.Context, db *sql.DB, e model.LedgerEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO ledger (id, member_id, item_id, borrowed_at, due_at, returned, returned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MemberID, e.ItemID, e.BorrowedAt, e.DueAt, e.Returned, e.ReturnedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting ledger entry: %w", err)
	}
	return nil
}

// Package lending implements the allocation engine: the rules that move
// copies between available and checked out, queue demand when supply is
// exhausted, and accrue overdue fees on return.
package lending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/fees"
	"github.com/mvidmar/knjiznica/internal/model"
)

// ReturnResult describes the outcome of a return.
type ReturnResult struct {
	ReturnedAt time.Time       `json:"returned_at"`
	DaysLate   int             `json:"days_late"`
	Fee        decimal.Decimal `json:"fee"`
	Balance    decimal.Decimal `json:"balance"`
}

// ReserveStatus classifies the outcome of a reservation request.
type ReserveStatus string

const (
	StatusReserved          ReserveStatus = "reserved"
	StatusAlreadyReserved   ReserveStatus = "already_reserved"
	StatusWaitlisted        ReserveStatus = "waitlisted"
	StatusAlreadyWaitlisted ReserveStatus = "already_waitlisted"
)

// ReserveResult describes the outcome of a reservation request. Duplicate
// requests are reported here rather than returned as errors.
type ReserveResult struct {
	Status  ReserveStatus `json:"status"`
	Message string        `json:"message"`
}

// NotifyResult describes a waitlist promotion. MemberID is empty when no one
// was waiting.
type NotifyResult struct {
	MemberID string `json:"member_id,omitempty"`
	Message  string `json:"message"`
}

// Checkout lends one copy of an item to a member. All preconditions are
// checked before any counter moves; a rejected checkout leaves every store
// untouched. loanDays <= 0 selects the default period for the item's media
// type. Returns the due date.
func Checkout(ctx context.Context, db *sql.DB, memberID, itemID string, loanDays int, now time.Time) (time.Time, error) {
	itemID = model.NormalizeItemID(itemID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT active FROM members WHERE id = ?`, memberID).Scan(&active)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("%w: member %s", model.ErrNotFound, memberID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("checking member: %w", err)
	}
	if !active {
		return time.Time{}, ErrInactiveAccount
	}

	var mediaType string
	var available int
	err = tx.QueryRowContext(ctx,
		`SELECT media_type, copies_available FROM items WHERE id = ?`, itemID,
	).Scan(&mediaType, &available)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("%w: item %s", model.ErrNotFound, itemID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("checking item: %w", err)
	}

	var open bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM loans WHERE member_id = ? AND item_id = ? AND returned_at IS NULL)`,
		memberID, itemID,
	).Scan(&open)
	if err != nil {
		return time.Time{}, fmt.Errorf("checking open loan: %w", err)
	}
	if open {
		return time.Time{}, ErrAlreadyBorrowed
	}

	if available <= 0 {
		return time.Time{}, ErrNoCopiesAvailable
	}

	if loanDays <= 0 {
		loanDays = model.LoanPeriodDays(mediaType)
	}
	due := DueDate(now, loanDays)

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET copies_available = copies_available - 1 WHERE id = ?`, itemID); err != nil {
		return time.Time{}, fmt.Errorf("decrementing copies: %w", err)
	}

	// A previous, returned loan record for the same item is overwritten;
	// the ledger keeps the history.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO loans (member_id, item_id, borrowed_at, due_at, returned_at)
		 VALUES (?, ?, ?, ?, NULL)
		 ON CONFLICT (member_id, item_id) DO UPDATE SET
		     borrowed_at = excluded.borrowed_at, due_at = excluded.due_at, returned_at = NULL`,
		memberID, itemID, now, due,
	); err != nil {
		return time.Time{}, fmt.Errorf("recording loan: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger (id, member_id, item_id, borrowed_at, due_at, returned)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		uuid.NewString(), memberID, itemID, now, due,
	); err != nil {
		return time.Time{}, fmt.Errorf("appending ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("committing checkout: %w", err)
	}
	return due, nil
}

// Return closes the member's open loan for an item, frees the copy, and
// accrues any overdue fee onto the member's balance.
func Return(ctx context.Context, db *sql.DB, memberID, itemID string, now time.Time, dailyRate decimal.Decimal, graceDays int) (*ReturnResult, error) {
	itemID = model.NormalizeItemID(itemID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var dueAt time.Time
	var returnedAt *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT due_at, returned_at FROM loans WHERE member_id = ? AND item_id = ?`,
		memberID, itemID,
	).Scan(&dueAt, &returnedAt)
	if err == sql.ErrNoRows || (err == nil && returnedAt != nil) {
		return nil, ErrNoOpenLoan
	}
	if err != nil {
		return nil, fmt.Errorf("checking loan: %w", err)
	}

	var available, total int
	err = tx.QueryRowContext(ctx,
		`SELECT copies_available, copies_total FROM items WHERE id = ?`, itemID,
	).Scan(&available, &total)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %s", model.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if available+1 > total {
		// Returning this copy would push availability past the total.
		// Something already corrupted the counters; fail loudly.
		return nil, fmt.Errorf("%w: item %s would have %d of %d copies available",
			model.ErrCorrupt, itemID, available+1, total)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE loans SET returned_at = ? WHERE member_id = ? AND item_id = ?`,
		now, memberID, itemID); err != nil {
		return nil, fmt.Errorf("closing loan: %w", err)
	}

	// Flip the oldest matching open ledger entry.
	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger SET returned = 1, returned_at = ?
		 WHERE seq = (SELECT MIN(seq) FROM ledger
		              WHERE member_id = ? AND item_id = ? AND returned = 0)`,
		now, memberID, itemID); err != nil {
		return nil, fmt.Errorf("closing ledger entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET copies_available = copies_available + 1 WHERE id = ?`, itemID); err != nil {
		return nil, fmt.Errorf("incrementing copies: %w", err)
	}

	fee := fees.Fee(dueAt, now, dailyRate, graceDays)
	balance, err := memberBalance(ctx, tx, memberID)
	if err != nil {
		return nil, err
	}
	if fee.IsPositive() {
		balance = balance.Add(fee)
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET balance = ? WHERE id = ?`, balance.StringFixed(2), memberID); err != nil {
			return nil, fmt.Errorf("accruing fee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	return &ReturnResult{
		ReturnedAt: now,
		DaysLate:   fees.DaysLate(dueAt, now),
		Fee:        fee,
		Balance:    balance,
	}, nil
}

// Reserve places a soft hold on an item for a member. With a copy available,
// the copy is held immediately; otherwise the member joins the item's FIFO
// waitlist. Duplicate requests are reported, never double-counted.
func Reserve(ctx context.Context, db *sql.DB, memberID, itemID string) (*ReserveResult, error) {
	itemID = model.NormalizeItemID(itemID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var available int
	err = tx.QueryRowContext(ctx, `SELECT copies_available FROM items WHERE id = ?`, itemID).Scan(&available)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %s", model.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = ?)`, memberID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking member: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: member %s", model.ErrNotFound, memberID)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reservations WHERE member_id = ? AND item_id = ?)`,
		memberID, itemID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking reservation: %w", err)
	}
	if exists {
		return &ReserveResult{
			Status:  StatusAlreadyReserved,
			Message: fmt.Sprintf("You have already reserved item '%s'.", itemID),
		}, nil
	}

	if available > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET copies_available = copies_available - 1 WHERE id = ?`, itemID); err != nil {
			return nil, fmt.Errorf("holding copy: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (member_id, item_id) VALUES (?, ?)`, memberID, itemID); err != nil {
			return nil, fmt.Errorf("recording reservation: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing reservation: %w", err)
		}
		return &ReserveResult{
			Status:  StatusReserved,
			Message: fmt.Sprintf("Item '%s' reserved for member '%s'.", itemID, memberID),
		}, nil
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM waitlist WHERE item_id = ? AND member_id = ?)`,
		itemID, memberID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking waitlist: %w", err)
	}
	if exists {
		return &ReserveResult{
			Status:  StatusAlreadyWaitlisted,
			Message: fmt.Sprintf("You are already on the waitlist for item '%s'.", itemID),
		}, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO waitlist (item_id, member_id) VALUES (?, ?)`, itemID, memberID); err != nil {
		return nil, fmt.Errorf("joining waitlist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing waitlist entry: %w", err)
	}
	return &ReserveResult{
		Status:  StatusWaitlisted,
		Message: fmt.Sprintf("No copies available. Member '%s' added to the waitlist for '%s'.", memberID, itemID),
	}, nil
}

// CancelReservation releases a member's hold on an item. A held copy goes
// back to the available pool; a waitlist entry is simply removed.
func CancelReservation(ctx context.Context, db *sql.DB, memberID, itemID string) error {
	itemID = model.NormalizeItemID(itemID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM reservations WHERE member_id = ? AND item_id = ?`, memberID, itemID)
	if err != nil {
		return fmt.Errorf("cancelling reservation: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		var available, total int
		err = tx.QueryRowContext(ctx,
			`SELECT copies_available, copies_total FROM items WHERE id = ?`, itemID,
		).Scan(&available, &total)
		if err != nil {
			return fmt.Errorf("checking item: %w", err)
		}
		if available+1 > total {
			return fmt.Errorf("%w: item %s would have %d of %d copies available",
				model.ErrCorrupt, itemID, available+1, total)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET copies_available = copies_available + 1 WHERE id = ?`, itemID); err != nil {
			return fmt.Errorf("releasing copy: %w", err)
		}
		return tx.Commit()
	}

	result, err = tx.ExecContext(ctx,
		`DELETE FROM waitlist WHERE member_id = ? AND item_id = ?`, memberID, itemID)
	if err != nil {
		return fmt.Errorf("leaving waitlist: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: no reservation or waitlist entry for member %s on item %s",
			model.ErrNotFound, memberID, itemID)
	}
	return tx.Commit()
}

// NotifyNext pops the head of an item's waitlist and composes the
// notification. Advisory only: no copy is granted or held. An empty waitlist
// reports "no one waiting" rather than failing.
func NotifyNext(ctx context.Context, db *sql.DB, itemID string) (*NotifyResult, error) {
	itemID = model.NormalizeItemID(itemID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var title string
	err = tx.QueryRowContext(ctx, `SELECT title FROM items WHERE id = ?`, itemID).Scan(&title)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %s", model.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}

	var rowID int64
	var memberID string
	err = tx.QueryRowContext(ctx,
		`SELECT id, member_id FROM waitlist WHERE item_id = ? ORDER BY id LIMIT 1`, itemID,
	).Scan(&rowID, &memberID)
	if err == sql.ErrNoRows {
		return &NotifyResult{Message: fmt.Sprintf("No one waiting for item '%s'.", itemID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading waitlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM waitlist WHERE id = ?`, rowID); err != nil {
		return nil, fmt.Errorf("popping waitlist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing waitlist pop: %w", err)
	}

	return &NotifyResult{
		MemberID: memberID,
		Message:  fmt.Sprintf("Notify %s: '%s' is now available.", memberID, title),
	}, nil
}

// PayBalance applies a payment to a member's balance, clamped at zero.
// Accrual is strictly additive; only payment can reduce the balance.
func PayBalance(ctx context.Context, db *sql.DB, memberID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: payment must be greater than zero", model.ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := memberBalance(ctx, tx, memberID)
	if err != nil {
		return decimal.Zero, err
	}

	balance = balance.Sub(amount.Round(2))
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE members SET balance = ? WHERE id = ?`, balance.StringFixed(2), memberID); err != nil {
		return decimal.Zero, fmt.Errorf("updating balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("committing payment: %w", err)
	}
	return balance, nil
}

func memberBalance(ctx context.Context, tx *sql.Tx, memberID string) (decimal.Decimal, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT balance FROM members WHERE id = ?`, memberID).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("%w: member %s", model.ErrNotFound, memberID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing balance: %w", err)
	}
	return balance, nil
}

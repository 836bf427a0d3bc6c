package model

import "time"

// Loan is a member's loan record for one item. A member has at most one open
// loan per item; borrowing the same item again after returning it overwrites
// this record, while the ledger keeps the full history.
type Loan struct {
	ItemID     string     `json:"item_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// LedgerEntry is one borrow event in the append-only lending ledger. Entries
// are never removed; a return only flips Returned and sets ReturnedAt.
type LedgerEntry struct {
	ID         string     `json:"id"`
	MemberID   string     `json:"member_id"`
	ItemID     string     `json:"item_id"`
	BorrowedAt time.Time  `json:"borrow_date"`
	DueAt      time.Time  `json:"due_date"`
	Returned   bool       `json:"returned"`
	ReturnedAt *time.Time `json:"return_date,omitempty"`
}

// Overdue reports whether the entry is late as observed at now: still open
// past its due date, or returned after it. Only the calendar date counts,
// and an entry closed without a return timestamp counts as returned on time.
func (e *LedgerEntry) Overdue(now time.Time) bool {
	observed := now
	switch {
	case e.ReturnedAt != nil:
		observed = *e.ReturnedAt
	case e.Returned:
		return false
	}
	oy, om, od := observed.Date()
	dy, dm, dd := e.DueAt.Date()
	return time.Date(oy, om, od, 0, 0, 0, 0, time.UTC).
		After(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC))
}

// Reminder is a scheduled due-date reminder for a member and item.
type Reminder struct {
	ID        int64     `json:"id"`
	MemberID  string    `json:"member_id"`
	ItemID    string    `json:"item_id"`
	DueAt     time.Time `json:"due_date"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

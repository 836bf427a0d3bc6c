// Package report folds the lending ledger into borrowing statistics and
// overdue notices.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/fees"
	"github.com/mvidmar/knjiznica/internal/store"
)

// MemberActivity summarizes one member's ledger entries.
type MemberActivity struct {
	Borrowed int             `json:"borrowed"`
	Overdue  int             `json:"overdue"`
	Fines    decimal.Decimal `json:"fines"`
}

// Report is an aggregate view over the whole ledger.
type Report struct {
	TotalBorrowed    int                       `json:"total_books_borrowed"`
	TotalOverdue     int                       `json:"total_overdue_books"`
	TotalFines       decimal.Decimal           `json:"total_fines_collected"`
	MemberActivity   map[string]MemberActivity `json:"member_activity"`
	MostActiveMember string                    `json:"most_active_member"`
	MostBorrowedItem string                    `json:"most_borrowed_item"`
}

// BorrowingReport folds every ledger entry into totals and per-member
// activity. Open loans accrue fines as if returned now. Ties for the most
// active member and most borrowed item go to the earliest ledger appearance.
func BorrowingReport(ctx context.Context, db *sql.DB, now time.Time, finePerDay decimal.Decimal) (*Report, error) {
	entries, err := store.ListLedger(ctx, db)
	if err != nil {
		return nil, err
	}

	r := &Report{
		TotalBorrowed:  len(entries),
		TotalFines:     decimal.Zero,
		MemberActivity: make(map[string]MemberActivity),
	}

	var memberOrder, itemOrder []string
	itemCounts := make(map[string]int)

	for _, e := range entries {
		if e.MemberID == "" || e.ItemID == "" {
			continue
		}

		observed := now
		switch {
		case e.ReturnedAt != nil:
			observed = *e.ReturnedAt
		case e.Returned:
			// Closed without a timestamp, assume an on-time return.
			observed = e.DueAt
		}

		activity, seen := r.MemberActivity[e.MemberID]
		if !seen {
			activity.Fines = decimal.Zero
			memberOrder = append(memberOrder, e.MemberID)
		}
		activity.Borrowed++

		if _, seen := itemCounts[e.ItemID]; !seen {
			itemOrder = append(itemOrder, e.ItemID)
		}
		itemCounts[e.ItemID]++

		// Late entries count as overdue even when the daily rate is zero.
		if e.Overdue(now) {
			fine := fees.Fee(e.DueAt, observed, finePerDay, 0)
			activity.Overdue++
			activity.Fines = activity.Fines.Add(fine)
			r.TotalOverdue++
			r.TotalFines = r.TotalFines.Add(fine)
		}
		r.MemberActivity[e.MemberID] = activity
	}

	for _, id := range memberOrder {
		if r.MostActiveMember == "" || r.MemberActivity[id].Borrowed > r.MemberActivity[r.MostActiveMember].Borrowed {
			r.MostActiveMember = id
		}
	}
	for _, id := range itemOrder {
		if r.MostBorrowedItem == "" || itemCounts[id] > itemCounts[r.MostBorrowedItem] {
			r.MostBorrowedItem = id
		}
	}
	return r, nil
}

// Notification is an overdue notice addressed to one member.
type Notification struct {
	MemberID string          `json:"member_id"`
	Message  string          `json:"message"`
	Fee      decimal.Decimal `json:"fee"`
}

// OverdueSummary is the outcome of an overdue sweep.
type OverdueSummary struct {
	TotalOverdue  int            `json:"total_overdue_items"`
	NotifiedCount int            `json:"notified_member_count"`
	Notifications []Notification `json:"messages"`
}

// OverdueNotifications sweeps open loans whose due date fell before today
// minus the grace period and drafts a notice per overdue entry. Members with
// several overdue items get one notice each but count once toward the
// notified total.
func OverdueNotifications(ctx context.Context, db *sql.DB, today time.Time, dailyFee decimal.Decimal, graceDays int) (*OverdueSummary, error) {
	entries, err := store.ListLedger(ctx, db)
	if err != nil {
		return nil, err
	}
	items, err := store.ListItems(ctx, db)
	if err != nil {
		return nil, err
	}
	members, err := store.ListMembers(ctx, db)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(items))
	for _, item := range items {
		titles[item.ID] = item.Title
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	if graceDays < 0 {
		graceDays = 0
	}
	cutoff := dateOnly(today).AddDate(0, 0, -graceDays)

	summary := &OverdueSummary{}
	notified := make(map[string]bool)

	for _, e := range entries {
		if e.Returned {
			continue
		}
		due := dateOnly(e.DueAt)
		if !due.Before(cutoff) {
			continue
		}

		title, ok := titles[e.ItemID]
		if !ok {
			title = e.ItemID
		}
		name, ok := names[e.MemberID]
		if !ok {
			name = "Member"
		}

		daysOverdue := int(dateOnly(today).Sub(due).Hours() / 24)
		fee := dailyFee.Mul(decimal.NewFromInt(int64(daysOverdue))).Round(2)

		summary.TotalOverdue++
		notified[e.MemberID] = true
		summary.Notifications = append(summary.Notifications, Notification{
			MemberID: e.MemberID,
			Fee:      fee,
			Message: fmt.Sprintf(
				"Hello %s, '%s' is overdue by %d day(s). Estimated fee so far: $%s. Due date was %s. Please return or renew.",
				name, title, daysOverdue, fee.StringFixed(2), due.Format("2006-01-02"),
			),
		})
	}
	summary.NotifiedCount = len(notified)
	return summary, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

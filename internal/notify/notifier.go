// Package notify runs the periodic overdue sweep in the background.
package notify

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/report"
	"github.com/mvidmar/knjiznica/internal/store"
)

// Notifier periodically sweeps the ledger for overdue loans and schedules
// reminders for loans coming due within a day.
type Notifier struct {
	DB        *sql.DB
	Interval  time.Duration
	DailyFee  decimal.Decimal
	GraceDays int
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	interval := n.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	n.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("notifier stopped")
			return
		case <-ticker.C:
			n.sweep(ctx)
		}
	}
}

func (n *Notifier) sweep(ctx context.Context) {
	now := time.Now()

	summary, err := report.OverdueNotifications(ctx, n.DB, now, n.DailyFee, n.GraceDays)
	if err != nil {
		slog.Error("overdue sweep failed", "error", err)
		return
	}
	for _, notice := range summary.Notifications {
		slog.Warn("overdue notice",
			"member_id", notice.MemberID,
			"fee", notice.Fee.StringFixed(2),
			"message", notice.Message,
		)
	}
	slog.Info("overdue sweep finished",
		"overdue_items", summary.TotalOverdue,
		"notified_members", summary.NotifiedCount,
	)

	n.remindUpcoming(ctx, now)
}

// remindUpcoming schedules a reminder for every open loan due within the
// next 24 hours. A loan already reminded for its due date is skipped.
func (n *Notifier) remindUpcoming(ctx context.Context, now time.Time) {
	entries, err := store.ListLedger(ctx, n.DB)
	if err != nil {
		slog.Error("listing ledger for reminders failed", "error", err)
		return
	}
	for _, e := range entries {
		if e.Returned {
			continue
		}
		until := e.DueAt.Sub(now)
		if until <= 0 || until >= 24*time.Hour {
			continue
		}
		exists, err := store.HasReminder(ctx, n.DB, e.MemberID, e.ItemID, e.DueAt)
		if err != nil {
			slog.Error("checking reminder failed", "member_id", e.MemberID, "item_id", e.ItemID, "error", err)
			continue
		}
		if exists {
			continue
		}
		ok, err := store.ScheduleReminder(ctx, n.DB, e.MemberID, e.ItemID, e.DueAt)
		if err != nil {
			slog.Error("scheduling reminder failed", "member_id", e.MemberID, "item_id", e.ItemID, "error", err)
			continue
		}
		if ok {
			slog.Info("reminder scheduled", "member_id", e.MemberID, "item_id", e.ItemID, "due_at", e.DueAt)
		}
	}
}

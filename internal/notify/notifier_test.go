package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/db"
	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/store"
)

func TestSweepSchedulesUpcomingReminders(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := store.CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", CopiesTotal: 1, CopiesAvailable: 0,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	if _, err := store.CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}

	dueSoon := time.Now().Add(12 * time.Hour)
	entry := model.LedgerEntry{
		ID:         uuid.NewString(),
		MemberID:   "M1",
		ItemID:     "BK101",
		BorrowedAt: dueSoon.AddDate(0, 0, -14),
		DueAt:      dueSoon,
	}
	if err := store.InsertLedgerEntry(ctx, database, entry); err != nil {
		t.Fatalf("inserting ledger entry: %v", err)
	}

	n := &Notifier{DB: database, DailyFee: decimal.RequireFromString("0.25")}
	n.sweep(ctx)

	reminders, err := store.ListReminders(ctx, database)
	if err != nil {
		t.Fatalf("listing reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(reminders))
	}
	if reminders[0].MemberID != "M1" || reminders[0].ItemID != "BK101" {
		t.Errorf("unexpected reminder: %+v", reminders[0])
	}
}

func TestSweepDoesNotDuplicateReminders(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := store.CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", CopiesTotal: 1, CopiesAvailable: 0,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	if _, err := store.CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}

	dueSoon := time.Now().Add(12 * time.Hour)
	entry := model.LedgerEntry{
		ID:         uuid.NewString(),
		MemberID:   "M1",
		ItemID:     "BK101",
		BorrowedAt: dueSoon.AddDate(0, 0, -14),
		DueAt:      dueSoon,
	}
	if err := store.InsertLedgerEntry(ctx, database, entry); err != nil {
		t.Fatalf("inserting ledger entry: %v", err)
	}

	n := &Notifier{DB: database, DailyFee: decimal.RequireFromString("0.25")}
	n.sweep(ctx)
	n.sweep(ctx)
	n.sweep(ctx)

	reminders, err := store.ListReminders(ctx, database)
	if err != nil {
		t.Fatalf("listing reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected 1 reminder after repeated sweeps, got %d", len(reminders))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	database := db.NewTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n := &Notifier{DB: database, Interval: time.Hour, DailyFee: decimal.RequireFromString("0.25")}
	go func() {
		n.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notifier did not stop after cancel")
	}
}

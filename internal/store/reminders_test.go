package store

import (
	"context"
	"testing"
	"time"

	"github.com/mvidmar/knjiznica/internal/db"
	"github.com/mvidmar/knjiznica/internal/model"
)

func TestScheduleReminder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", CopiesTotal: 1, CopiesAvailable: 1,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	if _, err := CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}

	due := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	ok, err := ScheduleReminder(ctx, database, "M1", "BK101", due)
	if err != nil {
		t.Fatalf("scheduling reminder: %v", err)
	}
	if !ok {
		t.Fatal("expected reminder to be scheduled")
	}

	reminders, err := ListReminders(ctx, database)
	if err != nil {
		t.Fatalf("listing reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(reminders))
	}
	want := "Reminder: Item ID BK101 is due on 2024-03-15."
	if reminders[0].Message != want {
		t.Errorf("expected message %q, got %q", want, reminders[0].Message)
	}
}

func TestScheduleReminderUnknownParties(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}

	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	ok, err := ScheduleReminder(ctx, database, "M1", "BK999", due)
	if err != nil {
		t.Fatalf("scheduling reminder: %v", err)
	}
	if ok {
		t.Error("expected no reminder for unknown item")
	}

	ok, err = ScheduleReminder(ctx, database, "M999", "BK101", due)
	if err != nil {
		t.Fatalf("scheduling reminder: %v", err)
	}
	if ok {
		t.Error("expected no reminder for unknown member")
	}

	reminders, err := ListReminders(ctx, database)
	if err != nil {
		t.Fatalf("listing reminders: %v", err)
	}
	if len(reminders) != 0 {
		t.Errorf("expected no reminders, got %d", len(reminders))
	}
}

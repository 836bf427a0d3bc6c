package lending

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/db"
	"github.com/mvidmar/knjiznica/internal/model"
	"github.com/mvidmar/knjiznica/internal/store"
)

var (
	testRate = decimal.RequireFromString("0.25")
	// A Monday, so short loans stay inside the work week.
	testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
)

func seed(t *testing.T) (*sql.DB, context.Context) {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := store.CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi",
		Tags: []string{"classic", "space"}, CopiesTotal: 2, CopiesAvailable: 2,
	}); err != nil {
		t.Fatalf("creating item: %v", err)
	}
	if _, err := store.CreateMember(ctx, database, model.Member{
		ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true,
	}); err != nil {
		t.Fatalf("creating member: %v", err)
	}
	return database, ctx
}

func TestCheckoutAndReturnRoundTrip(t *testing.T) {
	database, ctx := seed(t)

	due, err := Checkout(ctx, database, "M1", "BK101", 0, testNow)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// Books default to a 21-weekday period.
	if want := DueDate(testNow, 21); !due.Equal(want) {
		t.Errorf("due = %s, want %s", due, want)
	}

	item, _ := store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 1 {
		t.Errorf("available after checkout = %d, want 1", item.CopiesAvailable)
	}

	res, err := Return(ctx, database, "M1", "BK101", testNow.AddDate(0, 0, 3), testRate, 0)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !res.Fee.IsZero() {
		t.Errorf("on-time return fee = %s, want 0", res.Fee)
	}
	if !res.Balance.IsZero() {
		t.Errorf("balance after on-time return = %s, want 0", res.Balance)
	}

	item, _ = store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 2 {
		t.Errorf("available after return = %d, want 2", item.CopiesAvailable)
	}
}

func TestCheckoutPreconditions(t *testing.T) {
	database, ctx := seed(t)

	if _, err := Checkout(ctx, database, "ghost", "BK101", 0, testNow); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing member: err = %v, want ErrNotFound", err)
	}
	if _, err := Checkout(ctx, database, "M1", "BK999", 0, testNow); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing item: err = %v, want ErrNotFound", err)
	}

	store.SetMemberActive(ctx, database, "M1", false)
	if _, err := Checkout(ctx, database, "M1", "BK101", 0, testNow); !errors.Is(err, ErrInactiveAccount) {
		t.Errorf("inactive member: err = %v, want ErrInactiveAccount", err)
	}
	store.SetMemberActive(ctx, database, "M1", true)

	// A rejected checkout must not have touched the counter.
	item, _ := store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 2 {
		t.Errorf("available after rejected checkouts = %d, want 2", item.CopiesAvailable)
	}
}

func TestDoubleCheckoutRejected(t *testing.T) {
	database, ctx := seed(t)

	if _, err := Checkout(ctx, database, "M1", "BK101", 7, testNow); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	_, err := Checkout(ctx, database, "M1", "BK101", 7, testNow)
	if !errors.Is(err, ErrAlreadyBorrowed) {
		t.Fatalf("second checkout err = %v, want ErrAlreadyBorrowed", err)
	}
	if !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("ErrAlreadyBorrowed should classify as ErrInvalidState")
	}

	item, _ := store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 1 {
		t.Errorf("available = %d, want 1 (second checkout must not decrement)", item.CopiesAvailable)
	}

	// After returning, the same item can be borrowed again.
	if _, err := Return(ctx, database, "M1", "BK101", testNow.AddDate(0, 0, 1), testRate, 0); err != nil {
		t.Fatalf("return: %v", err)
	}
	if _, err := Checkout(ctx, database, "M1", "BK101", 7, testNow.AddDate(0, 0, 2)); err != nil {
		t.Errorf("re-borrow after return: %v", err)
	}
}

func TestCheckoutNoCopies(t *testing.T) {
	database, ctx := seed(t)

	store.CreateMember(ctx, database, model.Member{ID: "M2", Name: "Bor", Email: "bor@example.com", Active: true})
	store.CreateMember(ctx, database, model.Member{ID: "M3", Name: "Eva", Email: "eva@example.com", Active: true})

	Checkout(ctx, database, "M1", "BK101", 7, testNow)
	Checkout(ctx, database, "M2", "BK101", 7, testNow)

	if _, err := Checkout(ctx, database, "M3", "BK101", 7, testNow); !errors.Is(err, ErrNoCopiesAvailable) {
		t.Errorf("exhausted item: err = %v, want ErrNoCopiesAvailable", err)
	}
}

func TestReturnWithoutLoan(t *testing.T) {
	database, ctx := seed(t)

	if _, err := Return(ctx, database, "M1", "BK101", testNow, testRate, 0); !errors.Is(err, ErrNoOpenLoan) {
		t.Errorf("return without loan: err = %v, want ErrNoOpenLoan", err)
	}
}

func TestLateReturnAccruesFee(t *testing.T) {
	database, ctx := seed(t)

	due, err := Checkout(ctx, database, "M1", "BK101", 7, testNow)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	res, err := Return(ctx, database, "M1", "BK101", due.AddDate(0, 0, 10), testRate, 0)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if res.DaysLate != 10 {
		t.Errorf("days late = %d, want 10", res.DaysLate)
	}
	want := decimal.RequireFromString("2.50")
	if !res.Fee.Equal(want) {
		t.Errorf("fee = %s, want 2.50", res.Fee)
	}
	if !res.Balance.Equal(want) {
		t.Errorf("balance = %s, want 2.50", res.Balance)
	}

	member, _ := store.GetMember(ctx, database, "M1")
	if !member.Balance.Equal(want) {
		t.Errorf("stored balance = %s, want 2.50", member.Balance)
	}
}

func TestPayBalanceClampsAtZero(t *testing.T) {
	database, ctx := seed(t)

	due, _ := Checkout(ctx, database, "M1", "BK101", 7, testNow)
	Return(ctx, database, "M1", "BK101", due.AddDate(0, 0, 4), testRate, 0) // 1.00 owed

	balance, err := PayBalance(ctx, database, "M1", decimal.RequireFromString("0.40"))
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("0.60")) {
		t.Errorf("balance after partial payment = %s, want 0.60", balance)
	}

	balance, err = PayBalance(ctx, database, "M1", decimal.RequireFromString("5.00"))
	if err != nil {
		t.Fatalf("overpay: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("balance after overpayment = %s, want 0", balance)
	}

	if _, err := PayBalance(ctx, database, "M1", decimal.Zero); !errors.Is(err, model.ErrValidation) {
		t.Errorf("zero payment err = %v, want ErrValidation", err)
	}
}

func TestReserveHoldsCopy(t *testing.T) {
	database, ctx := seed(t)

	res, err := Reserve(ctx, database, "M1", "BK101")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Status != StatusReserved {
		t.Fatalf("status = %s, want %s", res.Status, StatusReserved)
	}

	item, _ := store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 1 {
		t.Errorf("available after reserve = %d, want 1", item.CopiesAvailable)
	}

	// Idempotent: repeat reports, does not mutate.
	res, err = Reserve(ctx, database, "M1", "BK101")
	if err != nil {
		t.Fatalf("repeat reserve: %v", err)
	}
	if res.Status != StatusAlreadyReserved {
		t.Errorf("status = %s, want %s", res.Status, StatusAlreadyReserved)
	}
	item, _ = store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 1 {
		t.Errorf("available after repeat reserve = %d, want 1", item.CopiesAvailable)
	}

	// Cancel releases the held copy.
	if err := CancelReservation(ctx, database, "M1", "BK101"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	item, _ = store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 2 {
		t.Errorf("available after cancel = %d, want 2", item.CopiesAvailable)
	}
}

func TestReserveExhaustedJoinsWaitlist(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// BK101 with all copies out and M2 already waiting.
	store.CreateItem(ctx, database, model.Item{
		ID: "BK101", Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi",
		CopiesTotal: 3, CopiesAvailable: 0,
	})
	store.CreateMember(ctx, database, model.Member{ID: "M2", Name: "Bor", Email: "bor@example.com", Active: true})
	store.CreateMember(ctx, database, model.Member{ID: "M4", Name: "Eva", Email: "eva@example.com", Active: true})

	if res, err := Reserve(ctx, database, "M2", "BK101"); err != nil || res.Status != StatusWaitlisted {
		t.Fatalf("first waitlist add: res=%+v err=%v", res, err)
	}

	res, err := Reserve(ctx, database, "M4", "BK101")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Status != StatusWaitlisted {
		t.Errorf("status = %s, want %s", res.Status, StatusWaitlisted)
	}

	item, _ := store.GetItem(ctx, database, "BK101")
	if item.CopiesAvailable != 0 {
		t.Errorf("available = %d, want 0 (waitlisting must not touch the counter)", item.CopiesAvailable)
	}
	if len(item.Waitlist) != 2 || item.Waitlist[0] != "M2" || item.Waitlist[1] != "M4" {
		t.Errorf("waitlist = %v, want [M2 M4]", item.Waitlist)
	}

	// Second request from the same member is a reported no-op.
	res, _ = Reserve(ctx, database, "M4", "BK101")
	if res.Status != StatusAlreadyWaitlisted {
		t.Errorf("status = %s, want %s", res.Status, StatusAlreadyWaitlisted)
	}
	item, _ = store.GetItem(ctx, database, "BK101")
	if len(item.Waitlist) != 2 {
		t.Errorf("waitlist length = %d, want 2", len(item.Waitlist))
	}
}

func TestNotifyNextPopsFIFO(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	store.CreateItem(ctx, database, model.Item{
		ID: "DV007", Title: "Solaris", Author: "Tarkovsky", Genre: "Sci-Fi",
		CopiesTotal: 1, CopiesAvailable: 0,
	})
	store.CreateMember(ctx, database, model.Member{ID: "M1", Name: "Ana", Email: "ana@example.com", Active: true})
	store.CreateMember(ctx, database, model.Member{ID: "M2", Name: "Bor", Email: "bor@example.com", Active: true})

	Reserve(ctx, database, "M1", "DV007")
	Reserve(ctx, database, "M2", "DV007")

	first, err := NotifyNext(ctx, database, "DV007")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if first.MemberID != "M1" {
		t.Errorf("first notified = %s, want M1", first.MemberID)
	}

	second, _ := NotifyNext(ctx, database, "DV007")
	if second.MemberID != "M2" {
		t.Errorf("second notified = %s, want M2", second.MemberID)
	}

	empty, err := NotifyNext(ctx, database, "DV007")
	if err != nil {
		t.Fatalf("notify on empty waitlist: %v", err)
	}
	if empty.MemberID != "" {
		t.Errorf("empty waitlist notified %s, want no one", empty.MemberID)
	}

	// Notifying never grants the copy.
	item, _ := store.GetItem(ctx, database, "DV007")
	if item.CopiesAvailable != 0 {
		t.Errorf("available = %d, want 0", item.CopiesAvailable)
	}
}

// Package fees computes overdue fees. All money flows through
// decimal.Decimal; repeated additive accrual over binary floats drifts, so
// balances and fees are exact decimals rounded half-up at two places.
package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysLate returns the number of whole calendar days the observation date
// lies past the due date, ignoring time of day. Never negative.
func DaysLate(due, observed time.Time) int {
	d := int(dateOnly(observed).Sub(dateOnly(due)).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Fee returns the overdue fee for a loan due at due and observed (returned,
// or inspected while still open) at observed. Days within the grace period
// are free; past it, each late day costs dailyRate. The result is rounded
// half-up to two decimal places.
func Fee(due, observed time.Time, dailyRate decimal.Decimal, graceDays int) decimal.Decimal {
	if graceDays < 0 {
		graceDays = 0
	}
	late := DaysLate(due, observed) - graceDays
	if late <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(late)).Mul(dailyRate).Round(2)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

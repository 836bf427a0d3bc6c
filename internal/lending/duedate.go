package lending

import "time"

// DueDate walks forward from the borrow instant one calendar day at a time,
// counting only weekdays toward the loan period. The due date is the last
// counted day, so it never lands on a Saturday or Sunday. Time of day is
// preserved from the borrow instant.
func DueDate(borrowedAt time.Time, loanDays int) time.Time {
	due := borrowedAt
	counted := 0
	for counted < loanDays {
		due = due.AddDate(0, 0, 1)
		if wd := due.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		counted++
	}
	return due
}

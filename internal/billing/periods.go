package billing

import (
	"time"

	"github.com/rentfolio/rentfolio/internal/leases"
)

// ComputePeriod derives the billing period and due date for the lease's next
// invoice. Explicit override dates are used verbatim. Otherwise the period
// starts at the lease's next billing date (or the first day of the current
// month when unset) and spans the lease's payment frequency; the due date is
// the period start with its day of month set to the lease's due day, clamped
// to the month's last day and rolled forward one month if that lands before
// the period start.
func ComputePeriod(lease *leases.Lease, override *PeriodOverride, now time.Time) Period {
	if override != nil {
		return Period{Start: override.Start, End: override.End, DueDate: override.DueDate}
	}

	var start time.Time
	if lease.NextBillingDate != nil {
		start = *lease.NextBillingDate
	} else {
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}

	months := lease.PaymentFrequency.Months()
	end := start.AddDate(0, months, 0).AddDate(0, 0, -1)

	dueDay := lease.PaymentDueDay
	if dueDay <= 0 {
		dueDay = 1
	}
	if last := lastDayOfMonth(start); dueDay > last {
		dueDay = last
	}
	due := time.Date(start.Year(), start.Month(), dueDay, 0, 0, 0, 0, start.Location())
	if due.Before(start) {
		due = due.AddDate(0, 1, 0)
	}

	return Period{Start: start, End: end, DueDate: due}
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

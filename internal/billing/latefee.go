package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// LateFeePolicy is a lease's configured late-fee mode and value.
type LateFeePolicy struct {
	Type  *leases.LateFeeType
	Value decimal.Decimal
}

// PolicyOf extracts the late-fee policy from a lease.
func PolicyOf(lease *leases.Lease) LateFeePolicy {
	return LateFeePolicy{Type: lease.LateFeeType, Value: lease.LateFeeValue}
}

// CalculateLateFee computes the fee accrued across the given invoices under
// the policy. Pure: no side effects, no clock access beyond the now argument.
//
// An invoice qualifies when it is neither paid nor cancelled and its due date
// is strictly in the past. Daily modes scale with full days overdue; one-time
// modes apply once per qualifying invoice. The summed fee is rounded to two
// decimals at the end.
func CalculateLateFee(policy LateFeePolicy, invoices []Invoice, now time.Time) decimal.Decimal {
	if policy.Type == nil {
		return decimal.Zero
	}

	total := decimal.Zero
	for i := range invoices {
		inv := &invoices[i]
		if inv.Status == InvoicePaid || inv.Status == InvoiceCancelled {
			continue
		}
		if !inv.DueDate.Before(now) {
			continue
		}
		daysOverdue := int64(now.Sub(inv.DueDate).Hours() / 24)
		if daysOverdue <= 0 {
			continue
		}
		pending := inv.Pending()

		switch *policy.Type {
		case leases.LateFeeDailyPercentage:
			total = total.Add(shared.Percent(pending, policy.Value).Mul(decimal.NewFromInt(daysOverdue)))
		case leases.LateFeeDailyFixed:
			total = total.Add(policy.Value.Mul(decimal.NewFromInt(daysOverdue)))
		case leases.LateFeePercentage:
			total = total.Add(shared.Percent(pending, policy.Value))
		case leases.LateFeeFixed:
			total = total.Add(policy.Value)
		}
	}
	return shared.RoundMoney(total)
}

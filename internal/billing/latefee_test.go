package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/leases"
)

func ptrLateFeeType(t leases.LateFeeType) *leases.LateFeeType { return &t }

func TestCalculateLateFee(t *testing.T) {
	now := date(2026, time.March, 10)
	overdue := Invoice{
		Status:     InvoiceIssued,
		DueDate:    date(2026, time.March, 7), // three full days overdue
		Total:      decimal.NewFromInt(1000),
		AmountPaid: decimal.Zero,
	}

	tests := []struct {
		name   string
		policy LateFeePolicy
		want   string
	}{
		{
			name:   "daily percentage accrues per day",
			policy: LateFeePolicy{Type: ptrLateFeeType(leases.LateFeeDailyPercentage), Value: decimal.NewFromInt(1)},
			want:   "30",
		},
		{
			name:   "daily fixed accrues per day",
			policy: LateFeePolicy{Type: ptrLateFeeType(leases.LateFeeDailyFixed), Value: decimal.NewFromInt(10)},
			want:   "30",
		},
		{
			name:   "one-time percentage",
			policy: LateFeePolicy{Type: ptrLateFeeType(leases.LateFeePercentage), Value: decimal.NewFromInt(5)},
			want:   "50",
		},
		{
			name:   "one-time fixed",
			policy: LateFeePolicy{Type: ptrLateFeeType(leases.LateFeeFixed), Value: decimal.NewFromInt(40)},
			want:   "40",
		},
		{
			name:   "no policy configured",
			policy: LateFeePolicy{},
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := CalculateLateFee(tt.policy, []Invoice{overdue}, now)
			require.True(t, fee.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", fee, tt.want)
		})
	}
}

func TestCalculateLateFeeSkipsSettledAndCurrent(t *testing.T) {
	now := date(2026, time.March, 10)
	policy := LateFeePolicy{Type: ptrLateFeeType(leases.LateFeeDailyFixed), Value: decimal.NewFromInt(10)}

	invoices := []Invoice{
		{Status: InvoicePaid, DueDate: date(2026, time.February, 1), Total: decimal.NewFromInt(1000)},
		{Status: InvoiceCancelled, DueDate: date(2026, time.February, 1), Total: decimal.NewFromInt(1000)},
		{Status: InvoiceIssued, DueDate: date(2026, time.March, 10), Total: decimal.NewFromInt(1000)},
		{Status: InvoiceIssued, DueDate: date(2026, time.April, 1), Total: decimal.NewFromInt(1000)},
	}

	fee := CalculateLateFee(policy, invoices, now)
	require.True(t, fee.IsZero(), "got %s", fee)
}

func TestCalculateLateFeeUsesPendingAmount(t *testing.T) {
	now := date(2026, time.March, 10)
	policy := LateFeePolicy{Type: ptrLateFeeType(leases.LateFeePercentage), Value: decimal.NewFromInt(10)}

	partiallyPaid := Invoice{
		Status:     InvoicePartiallyPaid,
		DueDate:    date(2026, time.March, 5),
		Total:      decimal.NewFromInt(1000),
		AmountPaid: decimal.NewFromInt(600),
	}

	fee := CalculateLateFee(policy, []Invoice{partiallyPaid}, now)
	require.True(t, fee.Equal(decimal.NewFromInt(40)), "got %s", fee)
}

func TestCalculateLateFeeSumsAcrossInvoices(t *testing.T) {
	now := date(2026, time.March, 10)
	policy := LateFeePolicy{Type: ptrLateFeeType(leases.LateFeeFixed), Value: decimal.NewFromInt(25)}

	invoices := []Invoice{
		{Status: InvoiceIssued, DueDate: date(2026, time.March, 1), Total: decimal.NewFromInt(500)},
		{Status: InvoiceIssued, DueDate: date(2026, time.February, 1), Total: decimal.NewFromInt(500)},
	}

	fee := CalculateLateFee(policy, invoices, now)
	require.True(t, fee.Equal(decimal.NewFromInt(50)), "got %s", fee)
}

package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/leases"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputePeriod(t *testing.T) {
	now := date(2026, time.March, 20)

	tests := []struct {
		name     string
		lease    leases.Lease
		override *PeriodOverride
		start    time.Time
		end      time.Time
		due      time.Time
	}{
		{
			name: "monthly from next billing date",
			lease: leases.Lease{
				NextBillingDate:  ptrTime(date(2026, time.March, 1)),
				PaymentFrequency: leases.FrequencyMonthly,
				PaymentDueDay:    10,
			},
			start: date(2026, time.March, 1),
			end:   date(2026, time.March, 31),
			due:   date(2026, time.March, 10),
		},
		{
			name: "defaults to first of current month",
			lease: leases.Lease{
				PaymentFrequency: leases.FrequencyMonthly,
				PaymentDueDay:    5,
			},
			start: date(2026, time.March, 1),
			end:   date(2026, time.March, 31),
			due:   date(2026, time.March, 5),
		},
		{
			name: "due day before mid-month start rolls into next month",
			lease: leases.Lease{
				NextBillingDate:  ptrTime(date(2026, time.March, 15)),
				PaymentFrequency: leases.FrequencyMonthly,
				PaymentDueDay:    10,
			},
			start: date(2026, time.March, 15),
			end:   date(2026, time.April, 14),
			due:   date(2026, time.April, 10),
		},
		{
			name: "quarterly span",
			lease: leases.Lease{
				NextBillingDate:  ptrTime(date(2026, time.January, 1)),
				PaymentFrequency: leases.FrequencyQuarterly,
				PaymentDueDay:    1,
			},
			start: date(2026, time.January, 1),
			end:   date(2026, time.March, 31),
			due:   date(2026, time.January, 1),
		},
		{
			name: "unset due day falls back to the first",
			lease: leases.Lease{
				NextBillingDate:  ptrTime(date(2026, time.May, 1)),
				PaymentFrequency: leases.FrequencyMonthly,
			},
			start: date(2026, time.May, 1),
			end:   date(2026, time.May, 31),
			due:   date(2026, time.May, 1),
		},
		{
			name: "due day beyond month length clamps to last day",
			lease: leases.Lease{
				NextBillingDate:  ptrTime(date(2026, time.February, 1)),
				PaymentFrequency: leases.FrequencyMonthly,
				PaymentDueDay:    31,
			},
			start: date(2026, time.February, 1),
			end:   date(2026, time.February, 28),
			due:   date(2026, time.February, 28),
		},
		{
			name:  "override used verbatim",
			lease: leases.Lease{PaymentFrequency: leases.FrequencyMonthly, PaymentDueDay: 10},
			override: &PeriodOverride{
				Start:   date(2026, time.July, 3),
				End:     date(2026, time.July, 29),
				DueDate: date(2026, time.August, 2),
			},
			start: date(2026, time.July, 3),
			end:   date(2026, time.July, 29),
			due:   date(2026, time.August, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period := ComputePeriod(&tt.lease, tt.override, now)
			require.Equal(t, tt.start, period.Start)
			require.Equal(t, tt.end, period.End)
			require.Equal(t, tt.due, period.DueDate)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

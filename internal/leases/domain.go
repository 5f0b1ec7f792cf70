package leases

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentFrequency enumerates how often a lease is billed.
type PaymentFrequency string

const (
	FrequencyMonthly    PaymentFrequency = "MONTHLY"
	FrequencyBimonthly  PaymentFrequency = "BIMONTHLY"
	FrequencyQuarterly  PaymentFrequency = "QUARTERLY"
	FrequencySemiannual PaymentFrequency = "SEMIANNUAL"
	FrequencyAnnual     PaymentFrequency = "ANNUAL"
)

// Months returns the billing interval length for the frequency, defaulting to monthly.
func (f PaymentFrequency) Months() int {
	switch f {
	case FrequencyBimonthly:
		return 2
	case FrequencyQuarterly:
		return 3
	case FrequencySemiannual:
		return 6
	case FrequencyAnnual:
		return 12
	default:
		return 1
	}
}

// LateFeeType enumerates late-fee policies.
type LateFeeType string

const (
	LateFeeDailyPercentage LateFeeType = "DAILY_PERCENTAGE"
	LateFeeDailyFixed      LateFeeType = "DAILY_FIXED"
	LateFeePercentage      LateFeeType = "PERCENTAGE"
	LateFeeFixed           LateFeeType = "FIXED"
)

// AdjustmentType enumerates rent adjustment policies.
type AdjustmentType string

const (
	AdjustmentFixed          AdjustmentType = "FIXED"
	AdjustmentPercentage     AdjustmentType = "PERCENTAGE"
	AdjustmentInflationIndex AdjustmentType = "INFLATION_INDEX"
)

// InflationIndexType enumerates the indexes a lease can be pegged to.
type InflationIndexType string

const (
	IndexCPI InflationIndexType = "CPI"
	IndexICL InflationIndexType = "ICL"
	IndexUVA InflationIndexType = "UVA"
)

// Lease carries the billing configuration the engine reads and, for rent
// adjustments and billing dates, mutates in place.
type Lease struct {
	ID                 int64
	PropertyID         int64
	OwnerID            int64
	CompanyID          *int64
	TenantID           *int64
	Currency           string
	MonthlyRent        decimal.Decimal
	AdditionalExpenses decimal.Decimal

	PaymentFrequency PaymentFrequency
	PaymentDueDay    int

	LateFeeType  *LateFeeType
	LateFeeValue decimal.Decimal

	AdjustmentType            *AdjustmentType
	AdjustmentValue           decimal.Decimal
	InflationIndexType        *InflationIndexType
	AdjustmentFrequencyMonths int

	LastAdjustmentDate *time.Time
	NextAdjustmentDate *time.Time
	LastBillingDate    *time.Time
	NextBillingDate    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owner carries the commission configuration for the commission cascade.
type Owner struct {
	ID             int64
	CompanyID      *int64
	CommissionRate decimal.Decimal
}

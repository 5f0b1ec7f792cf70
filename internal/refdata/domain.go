// Package refdata exposes published reference data consumed by the billing
// engine, currently the inflation index series used for indexed rent
// adjustments.
package refdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndexType identifies a published inflation index series.
type IndexType string

const (
	IndexTypeCPI IndexType = "CPI"
	IndexTypeICL IndexType = "ICL"
	IndexTypeUVA IndexType = "UVA"
)

// IndexEntry is one published row of an index series.
type IndexEntry struct {
	ID               int64
	IndexType        IndexType
	Period           time.Time
	Value            decimal.Decimal
	VariationMonthly *decimal.Decimal
	PublishedAt      time.Time
}

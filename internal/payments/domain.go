// Package payments records tenant remittances and applies confirmed amounts
// against outstanding invoices oldest-due first. Confirmation is the only
// transition that touches the ledger; cancellation reverses both the movement
// and the exact invoice applications it had recorded.
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates payment lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ItemType enumerates payment line item kinds.
type ItemType string

const (
	ItemCharge   ItemType = "CHARGE"
	ItemDiscount ItemType = "DISCOUNT"
)

// Item is one optional line of a payment. Charges add to the amount,
// discounts subtract.
type Item struct {
	ID          int64           `json:"id"`
	PaymentID   int64           `json:"payment_id"`
	Type        ItemType        `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    int64           `json:"quantity"`
}

// Signed returns the item's contribution to the payment amount.
func (i *Item) Signed() decimal.Decimal {
	qty := i.Quantity
	if qty <= 0 {
		qty = 1
	}
	line := i.Amount.Mul(decimal.NewFromInt(qty))
	if i.Type == ItemDiscount {
		return line.Neg()
	}
	return line
}

// InferAmount sums the items' signed lines. Used when no explicit amount is
// supplied.
func InferAmount(items []Item) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Signed())
	}
	return total
}

// Payment is a tenant's remittance.
type Payment struct {
	ID              int64
	TenantAccountID int64
	Amount          decimal.Decimal
	Currency        string
	PaymentDate     time.Time
	Method          string
	Reference       string
	ReceiptNumber   *string
	Status          Status
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Application records how much of a confirmed payment went to one invoice.
// Reversed applications keep their row with ReversedAt set.
type Application struct {
	ID         int64
	PaymentID  int64
	InvoiceID  int64
	Amount     decimal.Decimal
	ReversedAt *time.Time
	CreatedAt  time.Time
}

// ListFilters narrows payment listings.
type ListFilters struct {
	AccountID *int64
	Status    *Status
	Limit     int
	Offset    int
}

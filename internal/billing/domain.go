// Package billing turns leases into periodic invoices: it computes billing
// periods and due dates, applies rent adjustments when they fall due, sizes
// late fees, and drives the invoice lifecycle from draft through issuance to
// cancellation.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice lifecycle states. Overdue is derived from
// the due date, not stored.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceIssued        InvoiceStatus = "ISSUED"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

// Owed reports whether the invoice still counts toward the tenant's debt.
func (s InvoiceStatus) Owed() bool {
	return s == InvoiceIssued || s == InvoicePartiallyPaid
}

// Invoice represents rent owed for a billing period.
type Invoice struct {
	ID              int64
	LeaseID         int64
	OwnerID         int64
	TenantAccountID int64
	InvoiceNumber   string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	DueDate         time.Time
	Subtotal        decimal.Decimal
	LateFee         decimal.Decimal
	Adjustments     decimal.Decimal
	Total           decimal.Decimal
	AmountPaid      decimal.Decimal
	Currency        string
	Status          InvoiceStatus
	IssuedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Pending returns the unpaid remainder.
func (i *Invoice) Pending() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// Overdue reports whether the invoice is owed and past due.
func (i *Invoice) Overdue(now time.Time) bool {
	return i.Status.Owed() && i.DueDate.Before(now)
}

// Period is a computed billing period with its due date.
type Period struct {
	Start   time.Time
	End     time.Time
	DueDate time.Time
}

// PeriodOverride supplies explicit dates, bypassing period computation.
type PeriodOverride struct {
	Start   time.Time
	End     time.Time
	DueDate time.Time
}

// GenerateOptions steers invoice generation for a lease.
type GenerateOptions struct {
	ApplyLateFee    bool
	ApplyAdjustment bool
	Issue           bool
	Override        *PeriodOverride
}

// SkipReason explains why an optional step did nothing. Missing configuration
// is an expected condition, not an error.
type SkipReason string

const (
	SkipNotRequested  SkipReason = "NOT_REQUESTED"
	SkipNotConfigured SkipReason = "NOT_CONFIGURED"
	SkipNotDue        SkipReason = "NOT_DUE"
	SkipNoIndexData   SkipReason = "NO_INDEX_DATA"
)

// AdjustmentOutcome reports whether a rent adjustment was applied and the
// rent in effect afterwards.
type AdjustmentOutcome struct {
	Applied       bool
	Reason        SkipReason
	EffectiveRent decimal.Decimal
}

// ListFilters narrows invoice listings.
type ListFilters struct {
	LeaseID   *int64
	AccountID *int64
	Status    *InvoiceStatus
	DueFrom   *time.Time
	DueTo     *time.Time
	Limit     int
	Offset    int
}

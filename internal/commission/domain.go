// Package commission derives owner-facing commission invoices from issued
// tenant invoices. The cascade is best-effort bookkeeping: missing
// configuration skips quietly, and a failure never rolls back the issuance
// that triggered it.
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRatePercent is the fixed tax applied on top of the commission amount.
var TaxRatePercent = decimal.NewFromInt(21)

// DueInDays is how long after issuance a commission invoice falls due.
const DueInDays = 15

// Status enumerates commission invoice states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// CommissionInvoice is the owner-facing invoice derived from exactly one
// tenant invoice.
type CommissionInvoice struct {
	ID               int64
	InvoiceID        int64
	OwnerID          int64
	CompanyID        int64
	Number           string
	CommissionRate   decimal.Decimal
	BaseAmount       decimal.Decimal
	CommissionAmount decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	Currency         string
	DueDate          time.Time
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SourceInvoice carries the fields of the originating tenant invoice the
// cascade needs.
type SourceInvoice struct {
	ID       int64
	LeaseID  int64
	OwnerID  int64
	Subtotal decimal.Decimal
	Currency string
}

// SkipReason explains why the cascade created nothing.
type SkipReason string

const (
	SkipNoOwner          SkipReason = "NO_OWNER"
	SkipNoCommissionRate SkipReason = "NO_COMMISSION_RATE"
	SkipNoCompanyScope   SkipReason = "NO_COMPANY_SCOPE"
	SkipAlreadyExists    SkipReason = "ALREADY_EXISTS"
)

// CascadeOutcome is the tagged result of a cascade attempt.
type CascadeOutcome struct {
	Created bool
	Reason  SkipReason
	Invoice *CommissionInvoice
}

package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

type generateInvoiceRequest struct {
	ApplyLateFee    bool       `json:"apply_late_fee"`
	ApplyAdjustment *bool      `json:"apply_adjustment"`
	Issue           bool       `json:"issue"`
	PeriodStart     *time.Time `json:"period_start"`
	PeriodEnd       *time.Time `json:"period_end"`
	DueDate         *time.Time `json:"due_date"`
}

func (r generateInvoiceRequest) toOptions() GenerateOptions {
	opts := GenerateOptions{
		ApplyLateFee:    r.ApplyLateFee,
		ApplyAdjustment: true,
		Issue:           r.Issue,
	}
	if r.ApplyAdjustment != nil {
		opts.ApplyAdjustment = *r.ApplyAdjustment
	}
	if r.PeriodStart != nil && r.PeriodEnd != nil && r.DueDate != nil {
		opts.Override = &PeriodOverride{
			Start:   *r.PeriodStart,
			End:     *r.PeriodEnd,
			DueDate: *r.DueDate,
		}
	}
	return opts
}

type createInvoiceRequest struct {
	LeaseID     int64           `json:"lease_id" validate:"required"`
	Subtotal    decimal.Decimal `json:"subtotal" validate:"required"`
	LateFee     decimal.Decimal `json:"late_fee"`
	Adjustments decimal.Decimal `json:"adjustments"`
	PeriodStart time.Time       `json:"period_start" validate:"required"`
	PeriodEnd   time.Time       `json:"period_end" validate:"required"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
}

type invoiceResponse struct {
	ID              int64           `json:"id"`
	LeaseID         int64           `json:"lease_id"`
	OwnerID         int64           `json:"owner_id"`
	TenantAccountID int64           `json:"tenant_account_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	DueDate         time.Time       `json:"due_date"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	LateFee         decimal.Decimal `json:"late_fee"`
	Adjustments     decimal.Decimal `json:"adjustments"`
	Total           decimal.Decimal `json:"total"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Pending         decimal.Decimal `json:"pending"`
	Currency        string          `json:"currency"`
	Status          InvoiceStatus   `json:"status"`
	IssuedAt        *time.Time      `json:"issued_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type generateInvoiceResponse struct {
	Invoice           invoiceResponse `json:"invoice"`
	AdjustmentApplied bool            `json:"adjustment_applied"`
	AdjustmentSkipped SkipReason      `json:"adjustment_skipped,omitempty"`
	EffectiveRent     decimal.Decimal `json:"effective_rent"`
}

func toInvoiceResponse(inv *Invoice) invoiceResponse {
	return invoiceResponse{
		ID:              inv.ID,
		LeaseID:         inv.LeaseID,
		OwnerID:         inv.OwnerID,
		TenantAccountID: inv.TenantAccountID,
		InvoiceNumber:   inv.InvoiceNumber,
		PeriodStart:     inv.PeriodStart,
		PeriodEnd:       inv.PeriodEnd,
		DueDate:         inv.DueDate,
		Subtotal:        inv.Subtotal,
		LateFee:         inv.LateFee,
		Adjustments:     inv.Adjustments,
		Total:           inv.Total,
		AmountPaid:      inv.AmountPaid,
		Pending:         inv.Pending(),
		Currency:        inv.Currency,
		Status:          inv.Status,
		IssuedAt:        inv.IssuedAt,
		CreatedAt:       inv.CreatedAt,
	}
}

func toGenerateResponse(result *GenerateResult) generateInvoiceResponse {
	return generateInvoiceResponse{
		Invoice:           toInvoiceResponse(result.Invoice),
		AdjustmentApplied: result.Adjustment.Applied,
		AdjustmentSkipped: result.Adjustment.Reason,
		EffectiveRent:     result.Adjustment.EffectiveRent,
	}
}

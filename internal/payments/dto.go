package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type paymentItemRequest struct {
	Type        ItemType        `json:"type" validate:"required,oneof=CHARGE DISCOUNT"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Quantity    int64           `json:"quantity"`
}

type createPaymentRequest struct {
	TenantAccountID int64                `json:"tenant_account_id" validate:"required"`
	Amount          *decimal.Decimal     `json:"amount"`
	PaymentDate     *time.Time           `json:"payment_date"`
	Method          string               `json:"method" validate:"required"`
	Reference       string               `json:"reference"`
	Items           []paymentItemRequest `json:"items" validate:"dive"`
	ActingUserID    *int64               `json:"acting_user_id"`
}

type updatePaymentRequest struct {
	Amount       *decimal.Decimal     `json:"amount"`
	PaymentDate  *time.Time           `json:"payment_date"`
	Method       *string              `json:"method"`
	Reference    *string              `json:"reference"`
	Items        []paymentItemRequest `json:"items" validate:"dive"`
	ActingUserID *int64               `json:"acting_user_id"`
}

// transitionRequest is the optional body for confirm and cancel.
type transitionRequest struct {
	ActingUserID *int64 `json:"acting_user_id"`
}

type paymentResponse struct {
	ID              int64           `json:"id"`
	TenantAccountID int64           `json:"tenant_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentDate     time.Time       `json:"payment_date"`
	Method          string          `json:"method"`
	Reference       string          `json:"reference,omitempty"`
	ReceiptNumber   *string         `json:"receipt_number,omitempty"`
	Status          Status          `json:"status"`
	Items           []Item          `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type applicationResponse struct {
	ID         int64           `json:"id"`
	InvoiceID  int64           `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	ReversedAt *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toItems(reqs []paymentItemRequest) []Item {
	if len(reqs) == 0 {
		return nil
	}
	items := make([]Item, 0, len(reqs))
	for _, r := range reqs {
		qty := r.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, Item{
			Type:        r.Type,
			Description: r.Description,
			Amount:      r.Amount,
			Quantity:    qty,
		})
	}
	return items
}

func toPaymentResponse(p *Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		TenantAccountID: p.TenantAccountID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		PaymentDate:     p.PaymentDate,
		Method:          p.Method,
		Reference:       p.Reference,
		ReceiptNumber:   p.ReceiptNumber,
		Status:          p.Status,
		Items:           p.Items,
		CreatedAt:       p.CreatedAt,
	}
}

func toApplicationResponses(apps []Application) []applicationResponse {
	out := make([]applicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, applicationResponse{
			ID:         a.ID,
			InvoiceID:  a.InvoiceID,
			Amount:     a.Amount,
			ReversedAt: a.ReversedAt,
			CreatedAt:  a.CreatedAt,
		})
	}
	return out
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/documents"
	"github.com/rentfolio/rentfolio/internal/payments"
	"github.com/rentfolio/rentfolio/report"
)

// InvoiceReader loads invoices for rendering.
type InvoiceReader interface {
	Get(ctx context.Context, id int64) (*billing.Invoice, error)
}

// PaymentReader loads payments for rendering.
type PaymentReader interface {
	Get(ctx context.Context, id int64) (*payments.Payment, error)
}

// DocumentSink stores rendered PDFs.
type DocumentSink interface {
	Save(ctx context.Context, entityType string, entityID int64, storageKey, mimeType string, data []byte) (*documents.Document, error)
}

// Renderer handles the PDF render tasks.
type Renderer struct {
	invoices InvoiceReader
	payments PaymentReader
	registry DocumentSink
	pdf      *report.Client
	logger   *slog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(invoices InvoiceReader, paymentReader PaymentReader, registry DocumentSink, pdf *report.Client, logger *slog.Logger) *Renderer {
	return &Renderer{invoices: invoices, payments: paymentReader, registry: registry, pdf: pdf, logger: logger}
}

// HandleInvoiceRender processes TaskInvoiceRender tasks.
func (r *Renderer) HandleInvoiceRender(ctx context.Context, t *asynq.Task) error {
	var payload RenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	invoice, err := r.invoices.Get(ctx, payload.ID)
	if err != nil {
		return err
	}
	html, err := documents.BuildInvoiceHTML(invoice)
	if err != nil {
		return err
	}
	pdf, err := r.pdf.RenderHTML(ctx, html)
	if err != nil {
		return err
	}
	// Re-renders get their own file so an earlier PDF is never clobbered.
	key := fmt.Sprintf("invoices/%s-%s.pdf", invoice.InvoiceNumber, uuid.NewString())
	if _, err := r.registry.Save(ctx, "invoice", invoice.ID, key, "application/pdf", pdf); err != nil {
		return err
	}
	r.logger.Info("invoice rendered", slog.Int64("invoice_id", invoice.ID), slog.String("key", key))
	return nil
}

// HandleReceiptRender processes TaskReceiptRender tasks.
func (r *Renderer) HandleReceiptRender(ctx context.Context, t *asynq.Task) error {
	var payload RenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	payment, err := r.payments.Get(ctx, payload.ID)
	if err != nil {
		return err
	}
	if payment.ReceiptNumber == nil {
		r.logger.Warn("receipt render for payment without receipt number", slog.Int64("payment_id", payment.ID))
		return asynq.SkipRetry
	}
	html, err := documents.BuildReceiptHTML(payment)
	if err != nil {
		return err
	}
	pdf, err := r.pdf.RenderHTML(ctx, html)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("receipts/%s-%s.pdf", *payment.ReceiptNumber, uuid.NewString())
	if _, err := r.registry.Save(ctx, "payment", payment.ID, key, "application/pdf", pdf); err != nil {
		return err
	}
	r.logger.Info("receipt rendered", slog.Int64("payment_id", payment.ID), slog.String("key", key))
	return nil
}

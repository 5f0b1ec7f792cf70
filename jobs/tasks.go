// Package jobs wraps the Asynq worker, scheduler and client used for PDF
// rendering and the scheduled billing and integrity runs. Render tasks are
// enqueued strictly after the financial transaction commits; a failed render
// is retried by the queue and never touches ledger state.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskInvoiceRender renders an issued invoice to PDF.
	TaskInvoiceRender = "invoice:render"
	// TaskReceiptRender renders a confirmed payment's receipt to PDF.
	TaskReceiptRender = "receipt:render"
	// TaskBillingRun generates and issues invoices for leases whose billing
	// date has arrived.
	TaskBillingRun = "billing:run"
	// TaskLedgerIntegrity replay-verifies every tenant account.
	TaskLedgerIntegrity = "ledger:integrity"
)

// RenderPayload identifies the entity a render task works on.
type RenderPayload struct {
	ID int64 `json:"id"`
}

// NewInvoiceRenderTask constructs an invoice render task.
func NewInvoiceRenderTask(invoiceID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RenderPayload{ID: invoiceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceRender, data), nil
}

// NewReceiptRenderTask constructs a receipt render task.
func NewReceiptRenderTask(paymentID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RenderPayload{ID: paymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptRender, data), nil
}

// NewBillingRunTask constructs the scheduled billing run task.
func NewBillingRunTask() *asynq.Task {
	return asynq.NewTask(TaskBillingRun, nil)
}

// NewLedgerIntegrityTask constructs the scheduled integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

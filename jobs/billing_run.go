package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rentfolio/rentfolio/internal/billing"
)

// DueLeaseLister finds leases whose billing date has arrived.
type DueLeaseLister interface {
	ListDueForBilling(ctx context.Context, asOf time.Time) ([]int64, error)
}

// InvoiceGenerator generates and issues an invoice for one lease.
type InvoiceGenerator interface {
	GenerateForLease(ctx context.Context, leaseID int64, opts billing.GenerateOptions) (*billing.GenerateResult, error)
}

// BillingRun drives the scheduled invoice generation sweep. One lease failing
// does not stop the run; failures are logged and retried on the next cron
// tick because the lease's billing date only advances on success.
type BillingRun struct {
	leases  DueLeaseLister
	billing InvoiceGenerator
	logger  *slog.Logger
	now     func() time.Time
}

// NewBillingRun constructs a BillingRun.
func NewBillingRun(leaseLister DueLeaseLister, generator InvoiceGenerator, logger *slog.Logger) *BillingRun {
	return &BillingRun{leases: leaseLister, billing: generator, logger: logger, now: time.Now}
}

// Handle processes TaskBillingRun tasks.
func (b *BillingRun) Handle(ctx context.Context, _ *asynq.Task) error {
	due, err := b.leases.ListDueForBilling(ctx, b.now())
	if err != nil {
		return err
	}
	var generated, failed int
	for _, leaseID := range due {
		result, err := b.billing.GenerateForLease(ctx, leaseID, billing.GenerateOptions{
			ApplyAdjustment: true,
			Issue:           true,
		})
		if err != nil {
			failed++
			b.logger.Error("billing run: generate", slog.Int64("lease_id", leaseID), slog.Any("error", err))
			continue
		}
		generated++
		b.logger.Info("billing run: invoice issued",
			slog.Int64("lease_id", leaseID),
			slog.String("number", result.Invoice.InvoiceNumber))
	}
	b.logger.Info("billing run finished",
		slog.Int("due", len(due)), slog.Int("generated", generated), slog.Int("failed", failed))
	return nil
}

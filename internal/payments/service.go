package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// ReceiptPrefix is the document number prefix for payment receipts.
const ReceiptPrefix = "REC"

// AccountReader resolves tenant accounts.
type AccountReader interface {
	Get(ctx context.Context, id int64) (*ledger.Account, error)
}

// LeaseReader resolves the lease behind an account, needed for the receipt
// number's owner scope.
type LeaseReader interface {
	Get(ctx context.Context, id int64) (*leases.Lease, error)
}

// DocumentEnqueuer schedules receipt rendering after commit.
type DocumentEnqueuer interface {
	EnqueueReceiptRender(ctx context.Context, paymentID int64) error
}

// AuditPort records payment lifecycle operations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateInput describes a new pending payment. A nil Amount is inferred from
// the items' signed sum.
type CreateInput struct {
	TenantAccountID int64
	Amount          *decimal.Decimal
	PaymentDate     time.Time
	Method          string
	Reference       string
	Items           []Item
}

// UpdateInput carries partial updates for a pending payment. Nil fields are
// left unchanged; a non-nil Items slice replaces the line items.
type UpdateInput struct {
	Amount      *decimal.Decimal
	PaymentDate *time.Time
	Method      *string
	Reference   *string
	Items       []Item
}

// Service drives the payment lifecycle.
type Service struct {
	repo     Repository
	accounts AccountReader
	leases   LeaseReader
	cache    *ledger.BalanceCache
	renderer DocumentEnqueuer
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance. Cache, renderer and audit are optional.
func NewService(repo Repository, accounts AccountReader, leaseReader LeaseReader, logger *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, leases: leaseReader, logger: logger, now: time.Now}
}

// WithCache wires the ledger balance cache for post-commit invalidation.
func (s *Service) WithCache(cache *ledger.BalanceCache) {
	s.cache = cache
}

// WithRenderer wires the PDF render queue.
func (s *Service) WithRenderer(renderer DocumentEnqueuer) {
	s.renderer = renderer
}

// WithAudit wires the audit trail.
func (s *Service) WithAudit(audit AuditPort) {
	s.audit = audit
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns a payment with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

// List returns payments matching the filters, newest first.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Payment, error) {
	return s.repo.List(ctx, filters)
}

// ListApplications returns a payment's invoice applications in application
// order, reversed ones included.
func (s *Service) ListApplications(ctx context.Context, paymentID int64) ([]Application, error) {
	if _, err := s.repo.Get(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.repo.ListApplications(ctx, paymentID)
}

// Create records a pending payment. An explicit amount takes precedence over
// the items' signed sum. The payment has no ledger effect until confirmed.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Payment, error) {
	account, err := s.accounts.Get(ctx, input.TenantAccountID)
	if err != nil {
		return nil, err
	}
	amount, err := resolveAmount(input.Amount, input.Items)
	if err != nil {
		return nil, err
	}
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	var created *Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err = tx.InsertPayment(ctx, Payment{
			TenantAccountID: account.ID,
			Amount:          amount,
			Currency:        account.Currency,
			PaymentDate:     paymentDate,
			Method:          input.Method,
			Reference:       input.Reference,
			Status:          StatusPending,
			Items:           input.Items,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdatePending edits a payment that has not been confirmed yet.
func (s *Service) UpdatePending(ctx context.Context, id int64, input UpdateInput) (*Payment, error) {
	var updated *Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return fmt.Errorf("payments: payment %d is %s, only pending payments can be edited: %w", id, p.Status, shared.ErrInvalidState)
		}
		if input.Items != nil {
			p.Items = input.Items
		}
		switch {
		case input.Amount != nil:
			p.Amount = *input.Amount
		case input.Items != nil:
			p.Amount = InferAmount(p.Items)
		}
		if !p.Amount.IsPositive() {
			return fmt.Errorf("payments: amount must be positive: %w", shared.ErrValidation)
		}
		if input.PaymentDate != nil {
			p.PaymentDate = *input.PaymentDate
		}
		if input.Method != nil {
			p.Method = *input.Method
		}
		if input.Reference != nil {
			p.Reference = *input.Reference
		}
		if err := tx.UpdatePending(ctx, *p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Confirm completes a pending payment: posts the PAYMENT movement, allocates
// the receipt number, and applies the amount against owed invoices oldest-due
// first. The account row is locked before the invoice rows. Any amount left
// after the last owed invoice stays unapplied; the ledger balance already
// reflects it.
func (s *Service) Confirm(ctx context.Context, id int64) (*Payment, error) {
	now := s.now()
	var payment *Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return fmt.Errorf("payments: payment %d is %s, only pending payments can be confirmed: %w", id, p.Status, shared.ErrInvalidState)
		}

		account, err := s.accounts.Get(ctx, p.TenantAccountID)
		if err != nil {
			return err
		}
		lease, err := s.leases.Get(ctx, account.LeaseID)
		if err != nil {
			return err
		}
		receipt, err := tx.NextNumber(ctx, sequence.ScopeOwner, lease.OwnerID, ReceiptPrefix)
		if err != nil {
			return err
		}
		if err := tx.MarkCompleted(ctx, p.ID, receipt, now); err != nil {
			return err
		}
		if _, err := tx.AppendMovement(ctx, ledger.AddMovementInput{
			AccountID:     p.TenantAccountID,
			Type:          ledger.MovementPayment,
			Amount:        p.Amount.Neg(),
			ReferenceType: "payment",
			ReferenceID:   p.ID,
			Description:   fmt.Sprintf("Payment %s", receipt),
			MovementDate:  now,
		}); err != nil {
			return err
		}

		if err := s.applyFIFO(ctx, tx, p); err != nil {
			return err
		}

		p.Status = StatusCompleted
		p.ReceiptNumber = &receipt
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, payment.TenantAccountID)
	if s.renderer != nil {
		if err := s.renderer.EnqueueReceiptRender(ctx, payment.ID); err != nil {
			s.logger.Error("enqueue receipt render", slog.Int64("payment_id", payment.ID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, "payment.confirm", payment)
	return payment, nil
}

// Cancel voids a payment. A completed payment gets a reversing ADJUSTMENT of
// its full amount and every recorded invoice application is undone, restoring
// each invoice's paid amount and status.
func (s *Service) Cancel(ctx context.Context, id int64) (*Payment, error) {
	now := s.now()
	var payment *Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusCancelled {
			return fmt.Errorf("payments: payment %d already cancelled: %w", id, shared.ErrInvalidState)
		}

		if p.Status == StatusCompleted {
			if _, err := tx.AppendMovement(ctx, ledger.AddMovementInput{
				AccountID:     p.TenantAccountID,
				Type:          ledger.MovementAdjustment,
				Amount:        p.Amount,
				ReferenceType: "payment",
				ReferenceID:   p.ID,
				Description:   fmt.Sprintf("Cancellation of payment %d", p.ID),
				MovementDate:  now,
			}); err != nil {
				return err
			}
			if err := s.reverseApplications(ctx, tx, p.ID, now); err != nil {
				return err
			}
		}
		if err := tx.MarkCancelled(ctx, p.ID); err != nil {
			return err
		}
		p.Status = StatusCancelled
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, payment.TenantAccountID)
	s.recordAudit(ctx, "payment.cancel", payment)
	return payment, nil
}

// applyFIFO walks the account's owed invoices in due-date order, paying each
// down by at most its pending amount until the payment is exhausted.
func (s *Service) applyFIFO(ctx context.Context, tx TxRepository, p *Payment) error {
	owed, err := tx.ListOwedForUpdate(ctx, p.TenantAccountID)
	if err != nil {
		return err
	}
	remaining := p.Amount
	for i := range owed {
		if !remaining.IsPositive() {
			break
		}
		inv := &owed[i]
		pending := inv.Pending()
		if !pending.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, pending)
		newPaid := inv.AmountPaid.Add(applied)
		status := billing.InvoicePartiallyPaid
		if newPaid.GreaterThanOrEqual(inv.Total) {
			status = billing.InvoicePaid
		}
		if err := tx.UpdateInvoicePayment(ctx, inv.ID, newPaid, status); err != nil {
			return err
		}
		if err := tx.InsertApplication(ctx, p.ID, inv.ID, applied); err != nil {
			return err
		}
		remaining = remaining.Sub(applied)
	}
	return nil
}

func (s *Service) reverseApplications(ctx context.Context, tx TxRepository, paymentID int64, now time.Time) error {
	apps, err := tx.ListActiveApplications(ctx, paymentID)
	if err != nil {
		return err
	}
	for i := range apps {
		app := &apps[i]
		inv, err := tx.GetInvoiceForUpdate(ctx, app.InvoiceID)
		if err != nil {
			return err
		}
		newPaid := inv.AmountPaid.Sub(app.Amount)
		if newPaid.IsNegative() {
			newPaid = decimal.Zero
		}
		status := inv.Status
		if status == billing.InvoicePaid || status == billing.InvoicePartiallyPaid {
			if newPaid.IsPositive() {
				status = billing.InvoicePartiallyPaid
			} else {
				status = billing.InvoiceIssued
			}
		}
		if err := tx.UpdateInvoicePayment(ctx, inv.ID, newPaid, status); err != nil {
			return err
		}
	}
	return tx.MarkApplicationsReversed(ctx, paymentID, now)
}

func (s *Service) invalidateBalance(ctx context.Context, accountID int64) {
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("invalidate balance cache", slog.Int64("account_id", accountID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, p *Payment) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFrom(ctx),
		Action:   action,
		Entity:   "payment",
		EntityID: fmt.Sprintf("%d", p.ID),
		Meta: map[string]any{
			"status": string(p.Status),
			"amount": p.Amount.String(),
		},
		At: s.now(),
	})
}

func resolveAmount(explicit *decimal.Decimal, items []Item) (decimal.Decimal, error) {
	amount := decimal.Zero
	if explicit != nil {
		amount = *explicit
	} else if len(items) > 0 {
		amount = InferAmount(items)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("payments: amount must be positive: %w", shared.ErrValidation)
	}
	return amount, nil
}

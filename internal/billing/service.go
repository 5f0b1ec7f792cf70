package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/commission"
	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/refdata"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// NumberPrefix is the document number prefix for tenant invoices.
const NumberPrefix = "INV"

// AccountResolver resolves a lease's tenant account, creating it on first use.
type AccountResolver interface {
	GetByLease(ctx context.Context, leaseID int64) (*ledger.Account, error)
	Get(ctx context.Context, id int64) (*ledger.Account, error)
}

// LeaseReader provides read access to lease billing configuration outside a
// transaction.
type LeaseReader interface {
	Get(ctx context.Context, id int64) (*leases.Lease, error)
}

// IndexReader looks up published inflation index rows.
type IndexReader interface {
	FindLatestIndex(ctx context.Context, indexType refdata.IndexType) (*refdata.IndexEntry, error)
}

// Cascader derives the owner's commission invoice after issuance.
type Cascader interface {
	CascadeFromInvoice(ctx context.Context, src commission.SourceInvoice) (commission.CascadeOutcome, error)
}

// DocumentEnqueuer schedules PDF rendering after commit.
type DocumentEnqueuer interface {
	EnqueueInvoiceRender(ctx context.Context, invoiceID int64) error
}

// AuditPort records invoice lifecycle operations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateInput describes a manually created draft invoice.
type CreateInput struct {
	LeaseID     int64
	Subtotal    decimal.Decimal
	LateFee     decimal.Decimal
	Adjustments decimal.Decimal
	Override    PeriodOverride
}

// GenerateResult carries the created invoice together with what the optional
// adjustment step did.
type GenerateResult struct {
	Invoice    *Invoice
	Adjustment AdjustmentOutcome
}

// Service drives the invoice lifecycle.
type Service struct {
	repo     Repository
	accounts AccountResolver
	leases   LeaseReader
	indexes  IndexReader
	cascade  Cascader
	renderer DocumentEnqueuer
	cache    *ledger.BalanceCache
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance. Cascade, renderer and audit are
// optional; nil disables the corresponding post-commit step.
func NewService(repo Repository, accounts AccountResolver, leaseReader LeaseReader, indexes IndexReader, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		leases:   leaseReader,
		indexes:  indexes,
		logger:   logger,
		now:      time.Now,
	}
}

// WithCascade wires the commission cascade.
func (s *Service) WithCascade(cascade Cascader) {
	s.cascade = cascade
}

// WithRenderer wires the PDF render queue.
func (s *Service) WithRenderer(renderer DocumentEnqueuer) {
	s.renderer = renderer
}

// WithAudit wires the audit trail.
func (s *Service) WithAudit(audit AuditPort) {
	s.audit = audit
}

// WithCache wires the ledger balance cache for post-commit invalidation.
func (s *Service) WithCache(cache *ledger.BalanceCache) {
	s.cache = cache
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns an invoice by id.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the filters, newest due first.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Invoice, error) {
	return s.repo.List(ctx, filters)
}

// GenerateForLease computes the lease's next billing period and creates the
// invoice for it. The rent adjustment runs inside the same transaction when
// requested and due; the lease's billing dates advance to the day after the
// period end. With opts.Issue the invoice is issued before returning.
func (s *Service) GenerateForLease(ctx context.Context, leaseID int64, opts GenerateOptions) (*GenerateResult, error) {
	account, err := s.accounts.GetByLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var result GenerateResult
	var issued bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lease, err := tx.GetLeaseForUpdate(ctx, leaseID)
		if err != nil {
			return err
		}
		period := ComputePeriod(lease, opts.Override, now)

		outcome, err := s.applyAdjustment(ctx, tx, lease, period.Start, opts.ApplyAdjustment)
		if err != nil {
			return err
		}
		result.Adjustment = outcome

		lateFee := decimal.Zero
		if opts.ApplyLateFee {
			owed, err := tx.ListOwedByAccount(ctx, account.ID)
			if err != nil {
				return err
			}
			lateFee = CalculateLateFee(PolicyOf(lease), owed, now)
		}

		subtotal := shared.RoundMoney(outcome.EffectiveRent.Add(lease.AdditionalExpenses))
		number, err := tx.NextNumber(ctx, sequence.ScopeOwner, lease.OwnerID, NumberPrefix)
		if err != nil {
			return err
		}

		inserted, err := tx.InsertInvoice(ctx, Invoice{
			LeaseID:         lease.ID,
			OwnerID:         lease.OwnerID,
			TenantAccountID: account.ID,
			InvoiceNumber:   number,
			PeriodStart:     period.Start,
			PeriodEnd:       period.End,
			DueDate:         period.DueDate,
			Subtotal:        subtotal,
			LateFee:         lateFee,
			Adjustments:     decimal.Zero,
			Total:           subtotal.Add(lateFee),
			AmountPaid:      decimal.Zero,
			Currency:        lease.Currency,
			Status:          InvoiceDraft,
		})
		if err != nil {
			return err
		}

		if err := tx.UpdateLeaseBillingDates(ctx, lease.ID, period.Start, period.End.AddDate(0, 0, 1)); err != nil {
			return err
		}

		if opts.Issue {
			if err := s.issueInTx(ctx, tx, inserted, now); err != nil {
				return err
			}
			issued = true
		}
		result.Invoice = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice generated",
		slog.Int64("lease_id", leaseID),
		slog.Int64("invoice_id", result.Invoice.ID),
		slog.String("number", result.Invoice.InvoiceNumber),
		slog.Bool("adjustment_applied", result.Adjustment.Applied),
		slog.Bool("issued", issued))
	if issued {
		s.afterIssue(ctx, result.Invoice)
	}
	return &result, nil
}

// Create persists a manually assembled draft invoice with explicit period
// dates and amounts.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Invoice, error) {
	account, err := s.accounts.GetByLease(ctx, input.LeaseID)
	if err != nil {
		return nil, err
	}
	if input.Override.End.Before(input.Override.Start) {
		return nil, fmt.Errorf("billing: period end before start: %w", shared.ErrValidation)
	}

	var created *Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lease, err := tx.GetLeaseForUpdate(ctx, input.LeaseID)
		if err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, sequence.ScopeOwner, lease.OwnerID, NumberPrefix)
		if err != nil {
			return err
		}
		created, err = tx.InsertInvoice(ctx, Invoice{
			LeaseID:         lease.ID,
			OwnerID:         lease.OwnerID,
			TenantAccountID: account.ID,
			InvoiceNumber:   number,
			PeriodStart:     input.Override.Start,
			PeriodEnd:       input.Override.End,
			DueDate:         input.Override.DueDate,
			Subtotal:        input.Subtotal,
			LateFee:         input.LateFee,
			Adjustments:     input.Adjustments,
			Total:           input.Subtotal.Add(input.LateFee).Add(input.Adjustments),
			AmountPaid:      decimal.Zero,
			Currency:        lease.Currency,
			Status:          InvoiceDraft,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Issue transitions a draft invoice to issued and posts the matching CHARGE
// movement. Commission cascade and PDF rendering run after commit and never
// roll back the issuance.
func (s *Service) Issue(ctx context.Context, id int64) (*Invoice, error) {
	now := s.now()
	var invoice *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.issueInTx(ctx, tx, inv, now); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterIssue(ctx, invoice)
	return invoice, nil
}

// Cancel voids an invoice. A fully paid invoice may not be cancelled. An owed
// invoice gets a reversing ADJUSTMENT of its full total before the status
// flips; a never-issued draft is cancelled without touching the ledger.
func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	now := s.now()
	var invoice *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch inv.Status {
		case InvoicePaid:
			return fmt.Errorf("billing: invoice %d is paid: %w", id, shared.ErrInvalidState)
		case InvoiceCancelled:
			return fmt.Errorf("billing: invoice %d already cancelled: %w", id, shared.ErrInvalidState)
		}
		if inv.Status.Owed() {
			if _, err := tx.AppendMovement(ctx, ledger.AddMovementInput{
				AccountID:     inv.TenantAccountID,
				Type:          ledger.MovementAdjustment,
				Amount:        inv.Total.Neg(),
				ReferenceType: "invoice",
				ReferenceID:   inv.ID,
				Description:   fmt.Sprintf("Cancellation of invoice %s", inv.InvoiceNumber),
				MovementDate:  now,
			}); err != nil {
				return err
			}
		}
		if err := tx.MarkCancelled(ctx, inv.ID); err != nil {
			return err
		}
		inv.Status = InvoiceCancelled
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateBalance(ctx, invoice.TenantAccountID)
	s.recordAudit(ctx, "invoice.cancel", invoice)
	return invoice, nil
}

// OutstandingLateFee computes the advisory late fee over the account's owed
// invoices under its lease's policy. Read-only.
func (s *Service) OutstandingLateFee(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	lease, err := s.leases.Get(ctx, account.LeaseID)
	if err != nil {
		return decimal.Zero, err
	}
	owed, err := s.repo.ListOwedByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return CalculateLateFee(PolicyOf(lease), owed, s.now()), nil
}

func (s *Service) issueInTx(ctx context.Context, tx TxRepository, inv *Invoice, now time.Time) error {
	if inv.Status != InvoiceDraft {
		return fmt.Errorf("billing: invoice %d is %s, only drafts can be issued: %w", inv.ID, inv.Status, shared.ErrInvalidState)
	}
	if err := tx.MarkIssued(ctx, inv.ID, now); err != nil {
		return err
	}
	if _, err := tx.AppendMovement(ctx, ledger.AddMovementInput{
		AccountID:     inv.TenantAccountID,
		Type:          ledger.MovementCharge,
		Amount:        inv.Total,
		ReferenceType: "invoice",
		ReferenceID:   inv.ID,
		Description:   fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
		MovementDate:  now,
	}); err != nil {
		return err
	}
	inv.Status = InvoiceIssued
	inv.IssuedAt = &now
	return nil
}

// applyAdjustment applies the lease's rent adjustment when requested and due.
// The lease row is already locked by the caller. A missing index row skips
// without advancing the adjustment dates, so the next run retries.
func (s *Service) applyAdjustment(ctx context.Context, tx TxRepository, lease *leases.Lease, periodStart time.Time, requested bool) (AdjustmentOutcome, error) {
	rent := lease.MonthlyRent
	if !requested {
		return AdjustmentOutcome{Reason: SkipNotRequested, EffectiveRent: rent}, nil
	}
	if lease.AdjustmentType == nil {
		return AdjustmentOutcome{Reason: SkipNotConfigured, EffectiveRent: rent}, nil
	}
	if lease.NextAdjustmentDate != nil && periodStart.Before(*lease.NextAdjustmentDate) {
		return AdjustmentOutcome{Reason: SkipNotDue, EffectiveRent: rent}, nil
	}

	switch *lease.AdjustmentType {
	case leases.AdjustmentFixed:
		rent = rent.Add(lease.AdjustmentValue)
	case leases.AdjustmentPercentage:
		rent = rent.Add(shared.Percent(rent, lease.AdjustmentValue))
	case leases.AdjustmentInflationIndex:
		if lease.InflationIndexType == nil {
			return AdjustmentOutcome{Reason: SkipNotConfigured, EffectiveRent: rent}, nil
		}
		entry, err := s.indexes.FindLatestIndex(ctx, mapIndexType(*lease.InflationIndexType))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return AdjustmentOutcome{Reason: SkipNoIndexData, EffectiveRent: rent}, nil
			}
			return AdjustmentOutcome{}, err
		}
		if entry.VariationMonthly == nil {
			return AdjustmentOutcome{Reason: SkipNoIndexData, EffectiveRent: rent}, nil
		}
		rent = rent.Add(shared.Percent(rent, *entry.VariationMonthly))
	default:
		return AdjustmentOutcome{Reason: SkipNotConfigured, EffectiveRent: rent}, nil
	}

	rent = shared.RoundMoney(rent)
	intervalMonths := lease.AdjustmentFrequencyMonths
	if intervalMonths <= 0 {
		intervalMonths = 12
	}
	next := periodStart.AddDate(0, intervalMonths, 0)
	if err := tx.UpdateLeaseRentAdjustment(ctx, lease.ID, rent, periodStart, next); err != nil {
		return AdjustmentOutcome{}, err
	}
	lease.MonthlyRent = rent
	lease.LastAdjustmentDate = &periodStart
	lease.NextAdjustmentDate = &next
	return AdjustmentOutcome{Applied: true, EffectiveRent: rent}, nil
}

// afterIssue runs the best-effort post-commit steps. Failures are logged and
// never surface to the caller; the issuance is already durable.
func (s *Service) afterIssue(ctx context.Context, inv *Invoice) {
	s.invalidateBalance(ctx, inv.TenantAccountID)
	if s.cascade != nil {
		outcome, err := s.cascade.CascadeFromInvoice(ctx, commission.SourceInvoice{
			ID:       inv.ID,
			LeaseID:  inv.LeaseID,
			OwnerID:  inv.OwnerID,
			Subtotal: inv.Subtotal,
			Currency: inv.Currency,
		})
		switch {
		case err != nil:
			s.logger.Error("commission cascade failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		case !outcome.Created:
			s.logger.Info("commission cascade skipped", slog.Int64("invoice_id", inv.ID), slog.String("reason", string(outcome.Reason)))
		}
	}
	if s.renderer != nil {
		if err := s.renderer.EnqueueInvoiceRender(ctx, inv.ID); err != nil {
			s.logger.Error("enqueue invoice render", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, "invoice.issue", inv)
}

func (s *Service) invalidateBalance(ctx context.Context, accountID int64) {
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("invalidate balance cache", slog.Int64("account_id", accountID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, inv *Invoice) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFrom(ctx),
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", inv.ID),
		Meta: map[string]any{
			"number": inv.InvoiceNumber,
			"status": string(inv.Status),
			"total":  inv.Total.String(),
		},
		At: s.now(),
	})
}

func mapIndexType(t leases.InflationIndexType) refdata.IndexType {
	switch t {
	case leases.IndexICL:
		return refdata.IndexTypeICL
	case leases.IndexUVA:
		return refdata.IndexTypeUVA
	default:
		return refdata.IndexTypeCPI
	}
}

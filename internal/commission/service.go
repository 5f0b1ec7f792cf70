package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// RepositoryPort defines the persistence the cascade needs.
type RepositoryPort interface {
	Insert(ctx context.Context, ci CommissionInvoice) (*CommissionInvoice, error)
	Get(ctx context.Context, id int64) (*CommissionInvoice, error)
	GetByInvoice(ctx context.Context, invoiceID int64) (*CommissionInvoice, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]CommissionInvoice, error)
}

// OwnerReader resolves owner commission configuration.
type OwnerReader interface {
	GetOwner(ctx context.Context, id int64) (*leases.Owner, error)
}

// NumberAllocator allocates commission invoice numbers.
type NumberAllocator interface {
	Next(ctx context.Context, scope sequence.Scope, scopeID int64, prefix string) (string, error)
}

// NumberPrefix is the document number prefix for commission invoices.
const NumberPrefix = "COM"

// Service handles commission cascade logic.
type Service struct {
	repo    RepositoryPort
	owners  OwnerReader
	numbers NumberAllocator
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, owners OwnerReader, numbers NumberAllocator, logger *slog.Logger) *Service {
	return &Service{repo: repo, owners: owners, numbers: numbers, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CascadeFromInvoice derives the owner's commission invoice from an issued
// tenant invoice. Missing owner, rate or company scope skips quietly; a
// duplicate cascade for the same invoice is reported, not retried.
func (s *Service) CascadeFromInvoice(ctx context.Context, src SourceInvoice) (CascadeOutcome, error) {
	owner, err := s.owners.GetOwner(ctx, src.OwnerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return CascadeOutcome{Reason: SkipNoOwner}, nil
		}
		return CascadeOutcome{}, err
	}
	if owner.CommissionRate.IsZero() {
		return CascadeOutcome{Reason: SkipNoCommissionRate}, nil
	}
	if owner.CompanyID == nil {
		return CascadeOutcome{Reason: SkipNoCompanyScope}, nil
	}

	number, err := s.numbers.Next(ctx, sequence.ScopeCompany, *owner.CompanyID, NumberPrefix)
	if err != nil {
		return CascadeOutcome{}, fmt.Errorf("commission: allocate number: %w", err)
	}

	base := src.Subtotal
	commissionAmount := shared.RoundMoney(shared.Percent(base, owner.CommissionRate))
	taxAmount := shared.RoundMoney(shared.Percent(commissionAmount, TaxRatePercent))

	inserted, err := s.repo.Insert(ctx, CommissionInvoice{
		InvoiceID:        src.ID,
		OwnerID:          owner.ID,
		CompanyID:        *owner.CompanyID,
		Number:           number,
		CommissionRate:   owner.CommissionRate,
		BaseAmount:       base,
		CommissionAmount: commissionAmount,
		TaxAmount:        taxAmount,
		Total:            commissionAmount.Add(taxAmount),
		Currency:         src.Currency,
		DueDate:          s.now().AddDate(0, 0, DueInDays),
		Status:           StatusDraft,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSource) {
			return CascadeOutcome{Reason: SkipAlreadyExists}, nil
		}
		return CascadeOutcome{}, err
	}

	s.logger.Info("commission cascade",
		slog.Int64("invoice_id", src.ID),
		slog.Int64("owner_id", owner.ID),
		slog.String("number", inserted.Number),
		slog.String("total", inserted.Total.String()))
	return CascadeOutcome{Created: true, Invoice: inserted}, nil
}

// Get returns a commission invoice by id.
func (s *Service) Get(ctx context.Context, id int64) (*CommissionInvoice, error) {
	return s.repo.Get(ctx, id)
}

// GetByInvoice returns the commission invoice for a tenant invoice.
func (s *Service) GetByInvoice(ctx context.Context, invoiceID int64) (*CommissionInvoice, error) {
	return s.repo.GetByInvoice(ctx, invoiceID)
}

// ListByOwner returns an owner's commission invoices.
func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]CommissionInvoice, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

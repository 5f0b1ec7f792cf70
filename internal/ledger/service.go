package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/shared"
)

var (
	// ErrUnknownMovementType indicates an unrecognized movement type.
	ErrUnknownMovementType = fmt.Errorf("ledger: unknown movement type: %w", shared.ErrValidation)
)

// LeaseReader resolves the lease an account belongs to.
type LeaseReader interface {
	Get(ctx context.Context, id int64) (*leases.Lease, error)
}

// LateFeeAssessor computes the advisory late fee over an account's
// outstanding invoices. Implemented by the billing engine.
type LateFeeAssessor interface {
	OutstandingLateFee(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

// AuditPort records ledger-affecting operations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles tenant account business logic.
type Service struct {
	repo     Repository
	leases   LeaseReader
	assessor LateFeeAssessor
	cache    *BalanceCache
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, leaseReader LeaseReader, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, leases: leaseReader, audit: audit, logger: logger, now: time.Now}
}

// WithAssessor wires the late-fee assessor after construction; ledger and
// billing reference each other, so main wires this once both exist.
func (s *Service) WithAssessor(assessor LateFeeAssessor) {
	s.assessor = assessor
}

// WithCache wires the balance cache.
func (s *Service) WithCache(cache *BalanceCache) {
	s.cache = cache
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateForLease creates the lease's tenant account, returning the existing
// row unchanged when it is already there.
func (s *Service) CreateForLease(ctx context.Context, leaseID int64) (*Account, error) {
	lease, err := s.leases.Get(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.TenantID == nil {
		return nil, fmt.Errorf("ledger: lease %d has no tenant: %w", leaseID, shared.ErrNotFound)
	}
	return s.repo.CreateAccount(ctx, leaseID, lease.Currency)
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// GetByLease returns the lease's account, creating it on first access.
func (s *Service) GetByLease(ctx context.Context, leaseID int64) (*Account, error) {
	account, err := s.repo.GetAccountByLease(ctx, leaseID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return s.CreateForLease(ctx, leaseID)
}

// ListMovements returns the account's movements in append order.
func (s *Service) ListMovements(ctx context.Context, accountID int64) ([]Movement, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, accountID)
}

// AddMovement appends a signed movement and updates the balance projection in
// one transaction, serialized per account by the row lock.
func (s *Service) AddMovement(ctx context.Context, input AddMovementInput) (*Movement, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMovementType, input.Type)
	}
	movementDate := input.MovementDate
	if movementDate.IsZero() {
		movementDate = s.now()
	}

	input.MovementDate = movementDate

	var movement *Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		appended, err := tx.Append(ctx, input)
		if err != nil {
			return err
		}
		movement = appended
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, input.AccountID); err != nil {
		s.logger.Warn("invalidate balance cache", slog.Int64("account_id", input.AccountID), slog.Any("error", err))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFrom(ctx),
			Action:   "ledger.movement",
			Entity:   "tenant_account",
			EntityID: fmt.Sprintf("%d", input.AccountID),
			Meta: map[string]any{
				"movement_id": movement.ID,
				"type":        string(movement.Type),
				"amount":      movement.Amount.String(),
			},
			At: s.now(),
		})
	}
	return movement, nil
}

// BalanceInfo composes the stored balance with a freshly computed advisory
// late fee. The fee is not posted as a movement by this call.
func (s *Service) BalanceInfo(ctx context.Context, accountID int64) (*BalanceInfo, error) {
	if cached, err := s.cache.Get(ctx, accountID); err != nil {
		s.logger.Warn("balance cache read", slog.Int64("account_id", accountID), slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	lateFee := decimal.Zero
	if s.assessor != nil {
		lateFee, err = s.assessor.OutstandingLateFee(ctx, accountID)
		if err != nil {
			return nil, err
		}
	}
	info := BalanceInfo{
		AccountID: account.ID,
		Currency:  account.Currency,
		Balance:   account.Balance,
		LateFee:   lateFee,
		Total:     account.Balance.Add(lateFee),
	}
	if err := s.cache.Set(ctx, info); err != nil {
		s.logger.Warn("balance cache write", slog.Int64("account_id", accountID), slog.Any("error", err))
	}
	return &info, nil
}

// ListAccountIDs returns every account id, used by the integrity scan task.
func (s *Service) ListAccountIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListAccountIDs(ctx)
}

// VerifyIntegrity replays the account's movements and checks that each
// balance_after snapshot matches the running sum and that the stored balance
// equals the total.
func (s *Service) VerifyIntegrity(ctx context.Context, accountID int64) (*IntegrityReport, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx, accountID)
	if err != nil {
		return nil, err
	}

	report := IntegrityReport{AccountID: accountID, Movements: len(movements), Consistent: true}
	running := decimal.Zero
	for i := range movements {
		running = running.Add(movements[i].Amount)
		if !running.Equal(movements[i].BalanceAfter) {
			report.Consistent = false
			id := movements[i].ID
			report.BrokenAt = &id
			break
		}
	}
	report.ReplayedSum = running
	report.StoredBalance = account.Balance
	if report.Consistent && !running.Equal(account.Balance) {
		report.Consistent = false
	}
	return &report, nil
}

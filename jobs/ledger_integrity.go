package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/rentfolio/rentfolio/internal/ledger"
)

// AccountVerifier exposes the ledger operations the integrity scan uses.
type AccountVerifier interface {
	ListAccountIDs(ctx context.Context) ([]int64, error)
	VerifyIntegrity(ctx context.Context, accountID int64) (*ledger.IntegrityReport, error)
}

// IntegrityScan replays every account's movements and logs any account whose
// stored balance or balance_after snapshots disagree with the replayed sum.
type IntegrityScan struct {
	ledger AccountVerifier
	logger *slog.Logger
}

// NewIntegrityScan constructs an IntegrityScan.
func NewIntegrityScan(verifier AccountVerifier, logger *slog.Logger) *IntegrityScan {
	return &IntegrityScan{ledger: verifier, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks. Accounts are verified a few at
// a time; replay is read-only so concurrent verification is safe.
func (s *IntegrityScan) Handle(ctx context.Context, _ *asynq.Task) error {
	ids, err := s.ledger.ListAccountIDs(ctx)
	if err != nil {
		return err
	}

	var broken atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			report, err := s.ledger.VerifyIntegrity(gctx, id)
			if err != nil {
				s.logger.Error("integrity scan: verify", slog.Int64("account_id", id), slog.Any("error", err))
				return nil
			}
			if !report.Consistent {
				broken.Add(1)
				attrs := []any{
					slog.Int64("account_id", id),
					slog.String("replayed", report.ReplayedSum.String()),
					slog.String("stored", report.StoredBalance.String()),
				}
				if report.BrokenAt != nil {
					attrs = append(attrs, slog.Int64("broken_at_movement", *report.BrokenAt))
				}
				s.logger.Error("integrity scan: inconsistent account", attrs...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("integrity scan finished",
		slog.Int("accounts", len(ids)), slog.Int64("inconsistent", broken.Load()))
	return nil
}

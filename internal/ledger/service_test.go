package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/shared"
)

type mockRepository struct {
	accounts       map[int64]*Account
	accountByLease map[int64]int64
	movements      map[int64][]Movement
	nextAccountID  int64
	nextMovementID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		accounts:       make(map[int64]*Account),
		accountByLease: make(map[int64]int64),
		movements:      make(map[int64][]Movement),
		nextAccountID:  1,
		nextMovementID: 1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepository{mock: m})
}

func (m *mockRepository) GetAccount(_ context.Context, id int64) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("ledger: account %d: %w", id, shared.ErrNotFound)
	}
	clone := *a
	return &clone, nil
}

func (m *mockRepository) GetAccountByLease(ctx context.Context, leaseID int64) (*Account, error) {
	id, ok := m.accountByLease[leaseID]
	if !ok {
		return nil, fmt.Errorf("ledger: account for lease %d: %w", leaseID, shared.ErrNotFound)
	}
	return m.GetAccount(ctx, id)
}

func (m *mockRepository) CreateAccount(ctx context.Context, leaseID int64, currency string) (*Account, error) {
	if id, ok := m.accountByLease[leaseID]; ok {
		return m.GetAccount(ctx, id)
	}
	a := &Account{ID: m.nextAccountID, LeaseID: leaseID, Currency: currency, Balance: decimal.Zero}
	m.nextAccountID++
	m.accounts[a.ID] = a
	m.accountByLease[leaseID] = a.ID
	return m.GetAccount(ctx, a.ID)
}

func (m *mockRepository) ListMovements(_ context.Context, accountID int64) ([]Movement, error) {
	return append([]Movement(nil), m.movements[accountID]...), nil
}

func (m *mockRepository) ListAccountIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

type mockTxRepository struct {
	mock *mockRepository
}

func (t *mockTxRepository) Append(_ context.Context, input AddMovementInput) (*Movement, error) {
	account, ok := t.mock.accounts[input.AccountID]
	if !ok {
		return nil, fmt.Errorf("ledger: account %d: %w", input.AccountID, shared.ErrNotFound)
	}
	newBalance := account.Balance.Add(input.Amount)
	m := Movement{
		ID:            t.mock.nextMovementID,
		AccountID:     input.AccountID,
		Type:          input.Type,
		Amount:        input.Amount,
		BalanceAfter:  newBalance,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Description:   input.Description,
		MovementDate:  input.MovementDate,
		CreatedAt:     time.Now(),
	}
	t.mock.nextMovementID++
	t.mock.movements[input.AccountID] = append(t.mock.movements[input.AccountID], m)
	account.Balance = newBalance
	account.LastMovementAt = &m.MovementDate
	return &m, nil
}

type mockLeaseReader struct {
	leases map[int64]*leases.Lease
}

func (m *mockLeaseReader) Get(_ context.Context, id int64) (*leases.Lease, error) {
	l, ok := m.leases[id]
	if !ok {
		return nil, fmt.Errorf("leases: lease %d: %w", id, shared.ErrNotFound)
	}
	return l, nil
}

type stubAssessor struct {
	fee decimal.Decimal
}

func (s *stubAssessor) OutstandingLateFee(context.Context, int64) (decimal.Decimal, error) {
	return s.fee, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestService(repo *mockRepository) (*Service, *mockLeaseReader) {
	tenantID := int64(7)
	reader := &mockLeaseReader{leases: map[int64]*leases.Lease{
		1: {ID: 1, OwnerID: 3, TenantID: &tenantID, Currency: "ARS"},
		2: {ID: 2, OwnerID: 3, Currency: "ARS"},
	}}
	return NewService(repo, reader, nil, testLogger()), reader
}

func TestCreateForLeaseIdempotent(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)

	first, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.accounts, 1)
	require.True(t, second.Balance.IsZero())
	require.Equal(t, "ARS", second.Currency)
}

func TestCreateForLeaseWithoutTenant(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)

	_, err := svc.CreateForLease(context.Background(), 2)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetByLeaseCreatesOnFirstAccess(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)

	account, err := svc.GetByLease(context.Background(), 1)
	require.NoError(t, err)
	require.NotZero(t, account.ID)

	again, err := svc.GetByLease(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, account.ID, again.ID)
}

func TestAddMovementSnapshotsBalance(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)
	account, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)

	amounts := []decimal.Decimal{
		decimal.NewFromInt(1000),
		decimal.NewFromInt(-400),
		decimal.NewFromFloat(250.50),
	}
	types := []MovementType{MovementCharge, MovementPayment, MovementCharge}
	for i := range amounts {
		_, err := svc.AddMovement(context.Background(), AddMovementInput{
			AccountID: account.ID,
			Type:      types[i],
			Amount:    amounts[i],
		})
		require.NoError(t, err)
	}

	movements, err := svc.ListMovements(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)

	running := decimal.Zero
	for _, m := range movements {
		running = running.Add(m.Amount)
		require.True(t, m.BalanceAfter.Equal(running),
			"balance_after %s != running sum %s", m.BalanceAfter, running)
	}

	updated, err := svc.Get(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(decimal.NewFromFloat(850.50)))
}

func TestAddMovementRejectsUnknownType(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)
	account, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.AddMovement(context.Background(), AddMovementInput{
		AccountID: account.ID,
		Type:      MovementType("BOGUS"),
		Amount:    decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	movements, err := svc.ListMovements(context.Background(), account.ID)
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestBalanceInfoIncludesAdvisoryLateFee(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)
	account, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.AddMovement(context.Background(), AddMovementInput{
		AccountID: account.ID,
		Type:      MovementCharge,
		Amount:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	svc.WithAssessor(&stubAssessor{fee: decimal.NewFromInt(30)})

	info, err := svc.BalanceInfo(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, info.Balance.Equal(decimal.NewFromInt(1000)))
	require.True(t, info.LateFee.Equal(decimal.NewFromInt(30)))
	require.True(t, info.Total.Equal(decimal.NewFromInt(1030)))
}

func TestVerifyIntegrityDetectsBrokenSnapshot(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)
	account, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.AddMovement(context.Background(), AddMovementInput{
			AccountID: account.ID,
			Type:      MovementCharge,
			Amount:    decimal.NewFromInt(100),
		})
		require.NoError(t, err)
	}

	report, err := svc.VerifyIntegrity(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.Equal(t, 3, report.Movements)

	// Corrupt one snapshot and replay again.
	repo.movements[account.ID][1].BalanceAfter = decimal.NewFromInt(999)
	report, err = svc.VerifyIntegrity(context.Background(), account.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.NotNil(t, report.BrokenAt)
	require.Equal(t, repo.movements[account.ID][1].ID, *report.BrokenAt)
}

func TestVerifyIntegrityDetectsDriftedBalance(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestService(repo)
	account, err := svc.CreateForLease(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.AddMovement(context.Background(), AddMovementInput{
		AccountID: account.ID,
		Type:      MovementCharge,
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	repo.accounts[account.ID].Balance = decimal.NewFromInt(400)

	report, err := svc.VerifyIntegrity(context.Background(), account.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.Nil(t, report.BrokenAt)
}

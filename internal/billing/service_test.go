package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/commission"
	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/refdata"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// ==== MOCK REPOSITORY ====

type mockRepository struct {
	invoices      map[int64]*Invoice
	leases        map[int64]*leases.Lease
	movements     []ledger.AddMovementInput
	counters      map[string]int64
	nextInvoiceID int64
	txError       error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		invoices:      make(map[int64]*Invoice),
		leases:        make(map[int64]*leases.Lease),
		counters:      make(map[string]int64),
		nextInvoiceID: 1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, &mockTxRepository{mock: m})
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("billing: invoice %d: %w", id, shared.ErrNotFound)
	}
	clone := *inv
	return &clone, nil
}

func (m *mockRepository) List(_ context.Context, filters ListFilters) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if filters.LeaseID != nil && inv.LeaseID != *filters.LeaseID {
			continue
		}
		if filters.Status != nil && inv.Status != *filters.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (m *mockRepository) ListOwedByAccount(_ context.Context, accountID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.TenantAccountID == accountID && inv.Status.Owed() {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

type mockTxRepository struct {
	mock *mockRepository
}

func (t *mockTxRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return t.mock.Get(ctx, id)
}

func (t *mockTxRepository) InsertInvoice(_ context.Context, inv Invoice) (*Invoice, error) {
	inv.ID = t.mock.nextInvoiceID
	t.mock.nextInvoiceID++
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	stored := inv
	t.mock.invoices[inv.ID] = &stored
	return &inv, nil
}

func (t *mockTxRepository) MarkIssued(_ context.Context, id int64, at time.Time) error {
	inv, ok := t.mock.invoices[id]
	if !ok {
		return fmt.Errorf("billing: invoice %d: %w", id, shared.ErrNotFound)
	}
	inv.Status = InvoiceIssued
	inv.IssuedAt = &at
	return nil
}

func (t *mockTxRepository) MarkCancelled(_ context.Context, id int64) error {
	inv, ok := t.mock.invoices[id]
	if !ok {
		return fmt.Errorf("billing: invoice %d: %w", id, shared.ErrNotFound)
	}
	inv.Status = InvoiceCancelled
	return nil
}

func (t *mockTxRepository) ListOwedByAccount(ctx context.Context, accountID int64) ([]Invoice, error) {
	return t.mock.ListOwedByAccount(ctx, accountID)
}

func (t *mockTxRepository) GetLeaseForUpdate(_ context.Context, leaseID int64) (*leases.Lease, error) {
	l, ok := t.mock.leases[leaseID]
	if !ok {
		return nil, fmt.Errorf("leases: lease %d: %w", leaseID, shared.ErrNotFound)
	}
	clone := *l
	return &clone, nil
}

func (t *mockTxRepository) UpdateLeaseRentAdjustment(_ context.Context, leaseID int64, rent decimal.Decimal, lastAdjustment, nextAdjustment time.Time) error {
	l := t.mock.leases[leaseID]
	l.MonthlyRent = rent
	l.LastAdjustmentDate = &lastAdjustment
	l.NextAdjustmentDate = &nextAdjustment
	return nil
}

func (t *mockTxRepository) UpdateLeaseBillingDates(_ context.Context, leaseID int64, lastBilling, nextBilling time.Time) error {
	l := t.mock.leases[leaseID]
	l.LastBillingDate = &lastBilling
	l.NextBillingDate = &nextBilling
	return nil
}

func (t *mockTxRepository) NextNumber(_ context.Context, scope sequence.Scope, scopeID int64, prefix string) (string, error) {
	key := fmt.Sprintf("%s:%d:%s", scope, scopeID, prefix)
	t.mock.counters[key]++
	return fmt.Sprintf("%s-202603-%04d", prefix, t.mock.counters[key]), nil
}

func (t *mockTxRepository) AppendMovement(_ context.Context, input ledger.AddMovementInput) (*ledger.Movement, error) {
	t.mock.movements = append(t.mock.movements, input)
	return &ledger.Movement{
		ID:        int64(len(t.mock.movements)),
		AccountID: input.AccountID,
		Type:      input.Type,
		Amount:    input.Amount,
	}, nil
}

// ==== MOCK PORTS ====

type mockAccounts struct {
	byLease map[int64]*ledger.Account
}

func (m *mockAccounts) GetByLease(_ context.Context, leaseID int64) (*ledger.Account, error) {
	a, ok := m.byLease[leaseID]
	if !ok {
		return nil, fmt.Errorf("ledger: account for lease %d: %w", leaseID, shared.ErrNotFound)
	}
	return a, nil
}

func (m *mockAccounts) Get(_ context.Context, id int64) (*ledger.Account, error) {
	for _, a := range m.byLease {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("ledger: account %d: %w", id, shared.ErrNotFound)
}

type mockLeaseReader struct {
	mock *mockRepository
}

func (m *mockLeaseReader) Get(_ context.Context, id int64) (*leases.Lease, error) {
	l, ok := m.mock.leases[id]
	if !ok {
		return nil, fmt.Errorf("leases: lease %d: %w", id, shared.ErrNotFound)
	}
	clone := *l
	return &clone, nil
}

type mockIndexReader struct {
	entry *refdata.IndexEntry
	err   error
}

func (m *mockIndexReader) FindLatestIndex(context.Context, refdata.IndexType) (*refdata.IndexEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entry, nil
}

type mockCascader struct {
	calls   []commission.SourceInvoice
	outcome commission.CascadeOutcome
}

func (m *mockCascader) CascadeFromInvoice(_ context.Context, src commission.SourceInvoice) (commission.CascadeOutcome, error) {
	m.calls = append(m.calls, src)
	return m.outcome, nil
}

// ==== FIXTURES ====

const (
	testLeaseID   = int64(1)
	testAccountID = int64(11)
	testOwnerID   = int64(3)
)

func fixedNow() time.Time {
	return date(2026, time.March, 20)
}

func testLease() *leases.Lease {
	return &leases.Lease{
		ID:                 testLeaseID,
		OwnerID:            testOwnerID,
		Currency:           "ARS",
		MonthlyRent:        decimal.NewFromInt(1000),
		AdditionalExpenses: decimal.NewFromInt(150),
		PaymentFrequency:   leases.FrequencyMonthly,
		PaymentDueDay:      10,
		NextBillingDate:    ptrTime(date(2026, time.March, 1)),
	}
}

func newTestService(t *testing.T) (*Service, *mockRepository, *mockIndexReader, *mockCascader) {
	t.Helper()
	repo := newMockRepository()
	repo.leases[testLeaseID] = testLease()
	accounts := &mockAccounts{byLease: map[int64]*ledger.Account{
		testLeaseID: {ID: testAccountID, LeaseID: testLeaseID, Currency: "ARS"},
	}}
	indexes := &mockIndexReader{}
	cascade := &mockCascader{outcome: commission.CascadeOutcome{Created: true}}

	svc := NewService(repo, accounts, &mockLeaseReader{mock: repo}, indexes, slog.New(slog.DiscardHandler))
	svc.WithCascade(cascade)
	svc.WithNow(fixedNow)
	return svc, repo, indexes, cascade
}

// ==== GENERATION ====

func TestGenerateForLeaseCreatesDraft(t *testing.T) {
	svc, repo, _, cascade := newTestService(t)

	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, InvoiceDraft, inv.Status)
	require.Equal(t, "INV-202603-0001", inv.InvoiceNumber)
	require.Equal(t, testAccountID, inv.TenantAccountID)
	require.Equal(t, date(2026, time.March, 1), inv.PeriodStart)
	require.Equal(t, date(2026, time.March, 31), inv.PeriodEnd)
	require.Equal(t, date(2026, time.March, 10), inv.DueDate)
	require.True(t, inv.Subtotal.Equal(decimal.NewFromInt(1150)), "got %s", inv.Subtotal)
	require.True(t, inv.Total.Equal(decimal.NewFromInt(1150)))

	require.Equal(t, SkipNotRequested, result.Adjustment.Reason)
	require.Empty(t, repo.movements, "a draft must not touch the ledger")
	require.Empty(t, cascade.calls)

	lease := repo.leases[testLeaseID]
	require.Equal(t, date(2026, time.March, 1), *lease.LastBillingDate)
	require.Equal(t, date(2026, time.April, 1), *lease.NextBillingDate)
}

func TestGenerateForLeaseWithIssue(t *testing.T) {
	svc, repo, _, cascade := newTestService(t)

	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{Issue: true})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, InvoiceIssued, inv.Status)
	require.NotNil(t, inv.IssuedAt)

	require.Len(t, repo.movements, 1)
	charge := repo.movements[0]
	require.Equal(t, ledger.MovementCharge, charge.Type)
	require.Equal(t, testAccountID, charge.AccountID)
	require.True(t, charge.Amount.Equal(inv.Total))
	require.Equal(t, "invoice", charge.ReferenceType)
	require.Equal(t, inv.ID, charge.ReferenceID)

	require.Len(t, cascade.calls, 1)
	require.Equal(t, inv.ID, cascade.calls[0].ID)
	require.True(t, cascade.calls[0].Subtotal.Equal(inv.Subtotal))
}

func TestGenerateForLeaseAppliesLateFee(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	feeType := leases.LateFeeDailyFixed
	repo.leases[testLeaseID].LateFeeType = &feeType
	repo.leases[testLeaseID].LateFeeValue = decimal.NewFromInt(10)

	// One issued invoice five days overdue at the fixed clock.
	repo.invoices[99] = &Invoice{
		ID:              99,
		TenantAccountID: testAccountID,
		Status:          InvoiceIssued,
		DueDate:         date(2026, time.March, 15),
		Total:           decimal.NewFromInt(500),
		AmountPaid:      decimal.Zero,
	}
	repo.nextInvoiceID = 100

	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{ApplyLateFee: true})
	require.NoError(t, err)

	inv := result.Invoice
	require.True(t, inv.LateFee.Equal(decimal.NewFromInt(50)), "got %s", inv.LateFee)
	require.True(t, inv.Total.Equal(decimal.NewFromInt(1200)))
}

// ==== RENT ADJUSTMENT ====

func TestGenerateAppliesInflationAdjustment(t *testing.T) {
	svc, repo, indexes, _ := newTestService(t)
	adjType := leases.AdjustmentInflationIndex
	idxType := leases.IndexICL
	lease := repo.leases[testLeaseID]
	lease.AdjustmentType = &adjType
	lease.InflationIndexType = &idxType
	lease.NextAdjustmentDate = ptrTime(date(2026, time.March, 1))

	variation := decimal.NewFromInt(10)
	indexes.entry = &refdata.IndexEntry{IndexType: refdata.IndexTypeICL, VariationMonthly: &variation}

	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{ApplyAdjustment: true})
	require.NoError(t, err)

	require.True(t, result.Adjustment.Applied)
	require.True(t, result.Adjustment.EffectiveRent.Equal(decimal.NewFromInt(1100)),
		"got %s", result.Adjustment.EffectiveRent)
	require.True(t, result.Invoice.Subtotal.Equal(decimal.NewFromInt(1250)))

	require.True(t, lease.MonthlyRent.Equal(decimal.NewFromInt(1100)))
	require.Equal(t, date(2026, time.March, 1), *lease.LastAdjustmentDate)
	require.Equal(t, date(2027, time.March, 1), *lease.NextAdjustmentDate)
}

func TestGenerateAdjustmentSkipReasons(t *testing.T) {
	adjType := leases.AdjustmentInflationIndex
	idxType := leases.IndexICL

	tests := []struct {
		name   string
		setup  func(l *leases.Lease, indexes *mockIndexReader)
		reason SkipReason
	}{
		{
			name:   "not configured",
			setup:  func(*leases.Lease, *mockIndexReader) {},
			reason: SkipNotConfigured,
		},
		{
			name: "not due yet",
			setup: func(l *leases.Lease, _ *mockIndexReader) {
				l.AdjustmentType = &adjType
				l.InflationIndexType = &idxType
				l.NextAdjustmentDate = ptrTime(date(2026, time.June, 1))
			},
			reason: SkipNotDue,
		},
		{
			name: "index row missing",
			setup: func(l *leases.Lease, indexes *mockIndexReader) {
				l.AdjustmentType = &adjType
				l.InflationIndexType = &idxType
				indexes.err = fmt.Errorf("refdata: no rows: %w", shared.ErrNotFound)
			},
			reason: SkipNoIndexData,
		},
		{
			name: "index row without variation",
			setup: func(l *leases.Lease, indexes *mockIndexReader) {
				l.AdjustmentType = &adjType
				l.InflationIndexType = &idxType
				indexes.entry = &refdata.IndexEntry{IndexType: refdata.IndexTypeICL}
			},
			reason: SkipNoIndexData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, indexes, _ := newTestService(t)
			tt.setup(repo.leases[testLeaseID], indexes)

			result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{ApplyAdjustment: true})
			require.NoError(t, err)

			require.False(t, result.Adjustment.Applied)
			require.Equal(t, tt.reason, result.Adjustment.Reason)
			require.True(t, result.Adjustment.EffectiveRent.Equal(decimal.NewFromInt(1000)))
			require.True(t, repo.leases[testLeaseID].MonthlyRent.Equal(decimal.NewFromInt(1000)))
		})
	}
}

func TestGenerateSkippedIndexLeavesAdjustmentDatesUntouched(t *testing.T) {
	svc, repo, indexes, _ := newTestService(t)
	adjType := leases.AdjustmentInflationIndex
	idxType := leases.IndexICL
	lease := repo.leases[testLeaseID]
	lease.AdjustmentType = &adjType
	lease.InflationIndexType = &idxType
	due := date(2026, time.March, 1)
	lease.NextAdjustmentDate = &due
	indexes.err = fmt.Errorf("refdata: no rows: %w", shared.ErrNotFound)

	_, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{ApplyAdjustment: true})
	require.NoError(t, err)

	// The next run must retry against the same due date.
	require.Equal(t, due, *lease.NextAdjustmentDate)
	require.Nil(t, lease.LastAdjustmentDate)
}

// ==== LIFECYCLE ====

func TestIssuePostsSingleCharge(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{})
	require.NoError(t, err)

	issued, err := svc.Issue(context.Background(), result.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceIssued, issued.Status)
	require.Len(t, repo.movements, 1)
	require.Equal(t, ledger.MovementCharge, repo.movements[0].Type)

	_, err = svc.Issue(context.Background(), result.Invoice.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Len(t, repo.movements, 1, "a failed issue must not post a second charge")
}

func TestCancelIssuedReversesCharge(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{Issue: true})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), result.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceCancelled, cancelled.Status)

	require.Len(t, repo.movements, 2)
	reversal := repo.movements[1]
	require.Equal(t, ledger.MovementAdjustment, reversal.Type)
	require.True(t, reversal.Amount.Equal(result.Invoice.Total.Neg()))
	require.Equal(t, "invoice", reversal.ReferenceType)
}

func TestCancelDraftSkipsLedger(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	result, err := svc.GenerateForLease(context.Background(), testLeaseID, GenerateOptions{})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), result.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceCancelled, cancelled.Status)
	require.Empty(t, repo.movements)
}

func TestCancelPaidRejected(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	repo.invoices[5] = &Invoice{ID: 5, TenantAccountID: testAccountID, Status: InvoicePaid}

	_, err := svc.Cancel(context.Background(), 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, InvoicePaid, repo.invoices[5].Status)
}

// ==== MANUAL CREATION ====

func TestCreateValidatesPeriod(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		LeaseID:  testLeaseID,
		Subtotal: decimal.NewFromInt(100),
		Override: PeriodOverride{
			Start: date(2026, time.March, 10),
			End:   date(2026, time.March, 1),
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateTotalsComponents(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	inv, err := svc.Create(context.Background(), CreateInput{
		LeaseID:     testLeaseID,
		Subtotal:    decimal.NewFromInt(100),
		LateFee:     decimal.NewFromInt(20),
		Adjustments: decimal.NewFromInt(5),
		Override: PeriodOverride{
			Start:   date(2026, time.March, 1),
			End:     date(2026, time.March, 31),
			DueDate: date(2026, time.March, 10),
		},
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceDraft, inv.Status)
	require.True(t, inv.Total.Equal(decimal.NewFromInt(125)))
}

// ==== LATE FEE ASSESSOR ====

func TestOutstandingLateFee(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	feeType := leases.LateFeePercentage
	repo.leases[testLeaseID].LateFeeType = &feeType
	repo.leases[testLeaseID].LateFeeValue = decimal.NewFromInt(5)

	repo.invoices[7] = &Invoice{
		ID:              7,
		TenantAccountID: testAccountID,
		Status:          InvoiceIssued,
		DueDate:         date(2026, time.March, 10),
		Total:           decimal.NewFromInt(1000),
		AmountPaid:      decimal.Zero,
	}

	fee, err := svc.OutstandingLateFee(context.Background(), testAccountID)
	require.NoError(t, err)
	require.True(t, fee.Equal(decimal.NewFromInt(50)), "got %s", fee)
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/platform/db"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// Repository encapsulates invoice persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, filters ListFilters) ([]Invoice, error)
	ListOwedByAccount(ctx context.Context, accountID int64) ([]Invoice, error)
}

// TxRepository exposes the operations an invoice transaction needs. Issuance
// and generation mutate invoices, the lease's billing configuration and the
// tenant ledger as one atomic unit, so lease and ledger writes are reachable
// from here as well.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
	MarkIssued(ctx context.Context, id int64, at time.Time) error
	MarkCancelled(ctx context.Context, id int64) error
	ListOwedByAccount(ctx context.Context, accountID int64) ([]Invoice, error)

	GetLeaseForUpdate(ctx context.Context, leaseID int64) (*leases.Lease, error)
	UpdateLeaseRentAdjustment(ctx context.Context, leaseID int64, rent decimal.Decimal, lastAdjustment, nextAdjustment time.Time) error
	UpdateLeaseBillingDates(ctx context.Context, leaseID int64, lastBilling, nextBilling time.Time) error

	NextNumber(ctx context.Context, scope sequence.Scope, scopeID int64, prefix string) (string, error)
	AppendMovement(ctx context.Context, input ledger.AddMovementInput) (*ledger.Movement, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, lease_id, owner_id, tenant_account_id, invoice_number,
period_start, period_end, due_date, subtotal, late_fee, adjustments, total,
amount_paid, currency, status, issued_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
	return scanInvoice(row, id)
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.LeaseID != nil {
		conditions = append(conditions, "lease_id = "+arg(*filters.LeaseID))
	}
	if filters.AccountID != nil {
		conditions = append(conditions, "tenant_account_id = "+arg(*filters.AccountID))
	}
	if filters.Status != nil {
		conditions = append(conditions, "status = "+arg(*filters.Status))
	}
	if filters.DueFrom != nil {
		conditions = append(conditions, "due_date >= "+arg(*filters.DueFrom))
	}
	if filters.DueTo != nil {
		conditions = append(conditions, "due_date <= "+arg(*filters.DueTo))
	}
	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY due_date DESC, id DESC"
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *repository) ListOwedByAccount(ctx context.Context, accountID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_account_id=$1 AND status IN ('ISSUED','PARTIALLY_PAID') ORDER BY due_date, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id)
	return scanInvoice(row, id)
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices
(lease_id, owner_id, tenant_account_id, invoice_number, period_start, period_end, due_date,
 subtotal, late_fee, adjustments, total, amount_paid, currency, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, created_at, updated_at`,
		inv.LeaseID, inv.OwnerID, inv.TenantAccountID, inv.InvoiceNumber,
		inv.PeriodStart, inv.PeriodEnd, inv.DueDate,
		inv.Subtotal, inv.LateFee, inv.Adjustments, inv.Total, inv.AmountPaid, inv.Currency, inv.Status).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *txRepository) MarkIssued(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status=$1, issued_at=$2, updated_at=NOW() WHERE id=$3`,
		InvoiceIssued, at, id)
	return err
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status=$1, updated_at=NOW() WHERE id=$2`,
		InvoiceCancelled, id)
	return err
}

func (r *txRepository) ListOwedByAccount(ctx context.Context, accountID int64) ([]Invoice, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_account_id=$1 AND status IN ('ISSUED','PARTIALLY_PAID') ORDER BY due_date, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *txRepository) GetLeaseForUpdate(ctx context.Context, leaseID int64) (*leases.Lease, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+leases.Columns+` FROM leases WHERE id=$1 FOR UPDATE`, leaseID)
	lease, err := leases.Scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("billing: lease %d: %w", leaseID, shared.ErrNotFound)
		}
		return nil, err
	}
	return lease, nil
}

func (r *txRepository) UpdateLeaseRentAdjustment(ctx context.Context, leaseID int64, rent decimal.Decimal, lastAdjustment, nextAdjustment time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE leases SET monthly_rent=$1, last_adjustment_date=$2, next_adjustment_date=$3, updated_at=NOW() WHERE id=$4`,
		rent, lastAdjustment, nextAdjustment, leaseID)
	return err
}

func (r *txRepository) UpdateLeaseBillingDates(ctx context.Context, leaseID int64, lastBilling, nextBilling time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE leases SET last_billing_date=$1, next_billing_date=$2, updated_at=NOW() WHERE id=$3`,
		lastBilling, nextBilling, leaseID)
	return err
}

func (r *txRepository) NextNumber(ctx context.Context, scope sequence.Scope, scopeID int64, prefix string) (string, error) {
	gen := sequence.NewGenerator(sequence.NewTxRepository(r.tx))
	return gen.Next(ctx, scope, scopeID, prefix)
}

func (r *txRepository) AppendMovement(ctx context.Context, input ledger.AddMovementInput) (*ledger.Movement, error) {
	return ledger.AppendInTx(ctx, r.tx, input)
}

func scanInvoice(row pgx.Row, id int64) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.LeaseID, &inv.OwnerID, &inv.TenantAccountID, &inv.InvoiceNumber,
		&inv.PeriodStart, &inv.PeriodEnd, &inv.DueDate, &inv.Subtotal, &inv.LateFee, &inv.Adjustments,
		&inv.Total, &inv.AmountPaid, &inv.Currency, &inv.Status, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("billing: invoice %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.LeaseID, &inv.OwnerID, &inv.TenantAccountID, &inv.InvoiceNumber,
			&inv.PeriodStart, &inv.PeriodEnd, &inv.DueDate, &inv.Subtotal, &inv.LateFee, &inv.Adjustments,
			&inv.Total, &inv.AmountPaid, &inv.Currency, &inv.Status, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

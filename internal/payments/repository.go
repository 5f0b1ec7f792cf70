package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/platform/db"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// OwedInvoice is the slice of an invoice the FIFO application needs.
type OwedInvoice struct {
	ID         int64
	DueDate    time.Time
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Status     billing.InvoiceStatus
}

// Pending returns the unpaid remainder.
func (i *OwedInvoice) Pending() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// Repository encapsulates payment persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, filters ListFilters) ([]Payment, error)
	ListApplications(ctx context.Context, paymentID int64) ([]Application, error)
}

// TxRepository exposes the writes a payment transaction performs. Confirmation
// and cancellation mutate the payment, the ledger and the applied invoices as
// one atomic unit.
type TxRepository interface {
	GetPaymentForUpdate(ctx context.Context, id int64) (*Payment, error)
	InsertPayment(ctx context.Context, p Payment) (*Payment, error)
	UpdatePending(ctx context.Context, p Payment) error
	MarkCompleted(ctx context.Context, id int64, receiptNumber string, at time.Time) error
	MarkCancelled(ctx context.Context, id int64) error

	ListOwedForUpdate(ctx context.Context, accountID int64) ([]OwedInvoice, error)
	GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (*OwedInvoice, error)
	UpdateInvoicePayment(ctx context.Context, invoiceID int64, amountPaid decimal.Decimal, status billing.InvoiceStatus) error

	InsertApplication(ctx context.Context, paymentID, invoiceID int64, amount decimal.Decimal) error
	ListActiveApplications(ctx context.Context, paymentID int64) ([]Application, error)
	MarkApplicationsReversed(ctx context.Context, paymentID int64, at time.Time) error

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

const paymentColumns = `id, tenant_account_id, amount, currency, payment_date,
method, reference, receipt_number, status, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	payment, err := scanPayment(row, id)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	payment.Items = items
	return payment, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	where := ""
	if filters.AccountID != nil {
		where = " WHERE tenant_account_id = " + arg(*filters.AccountID)
	}
	if filters.Status != nil {
		cond := "status = " + arg(*filters.Status)
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += where + " ORDER BY payment_date DESC, id DESC LIMIT " + arg(limit) + " OFFSET " + arg(filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.TenantAccountID, &p.Amount, &p.Currency, &p.PaymentDate,
			&p.Method, &p.Reference, &p.ReceiptNumber, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) ListApplications(ctx context.Context, paymentID int64) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, payment_id, invoice_id, amount, reversed_at, created_at
FROM payment_applications WHERE payment_id=$1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, paymentID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, payment_id, type, description, amount, quantity
FROM payment_items WHERE payment_id=$1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PaymentID, &it.Type, &it.Description, &it.Amount, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetPaymentForUpdate(ctx context.Context, id int64) (*Payment, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id)
	payment, err := scanPayment(row, id)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	payment.Items = items
	return payment, nil
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (*Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO payments
(tenant_account_id, amount, currency, payment_date, method, reference, status)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		p.TenantAccountID, p.Amount, p.Currency, p.PaymentDate, p.Method, p.Reference, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for i := range p.Items {
		p.Items[i].PaymentID = p.ID
		if err := r.insertItem(ctx, &p.Items[i]); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (r *txRepository) UpdatePending(ctx context.Context, p Payment) error {
	_, err := r.tx.Exec(ctx, `UPDATE payments SET amount=$1, payment_date=$2, method=$3, reference=$4, updated_at=NOW()
WHERE id=$5`, p.Amount, p.PaymentDate, p.Method, p.Reference, p.ID)
	if err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM payment_items WHERE payment_id=$1`, p.ID); err != nil {
		return err
	}
	for i := range p.Items {
		p.Items[i].PaymentID = p.ID
		if err := r.insertItem(ctx, &p.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) insertItem(ctx context.Context, it *Item) error {
	return r.tx.QueryRow(ctx, `INSERT INTO payment_items (payment_id, type, description, amount, quantity)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		it.PaymentID, it.Type, it.Description, it.Amount, it.Quantity).Scan(&it.ID)
}

func (r *txRepository) MarkCompleted(ctx context.Context, id int64, receiptNumber string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE payments SET status=$1, receipt_number=$2, updated_at=$3 WHERE id=$4`,
		StatusCompleted, receiptNumber, at, id)
	return err
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE payments SET status=$1, updated_at=NOW() WHERE id=$2`,
		StatusCancelled, id)
	return err
}

func (r *txRepository) ListOwedForUpdate(ctx context.Context, accountID int64) ([]OwedInvoice, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, due_date, total, amount_paid, status FROM invoices
WHERE tenant_account_id=$1 AND status IN ('ISSUED','PARTIALLY_PAID')
ORDER BY due_date, id FOR UPDATE`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OwedInvoice
	for rows.Next() {
		var inv OwedInvoice
		if err := rows.Scan(&inv.ID, &inv.DueDate, &inv.Total, &inv.AmountPaid, &inv.Status); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (*OwedInvoice, error) {
	var inv OwedInvoice
	err := r.tx.QueryRow(ctx, `SELECT id, due_date, total, amount_paid, status FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID).
		Scan(&inv.ID, &inv.DueDate, &inv.Total, &inv.AmountPaid, &inv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payments: invoice %d: %w", invoiceID, shared.ErrNotFound)
		}
		return nil, err
	}
	return &inv, nil
}

func (r *txRepository) UpdateInvoicePayment(ctx context.Context, invoiceID int64, amountPaid decimal.Decimal, status billing.InvoiceStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET amount_paid=$1, status=$2, updated_at=NOW() WHERE id=$3`,
		amountPaid, status, invoiceID)
	return err
}

func (r *txRepository) InsertApplication(ctx context.Context, paymentID, invoiceID int64, amount decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payment_applications (payment_id, invoice_id, amount) VALUES ($1, $2, $3)`,
		paymentID, invoiceID, amount)
	return err
}

func (r *txRepository) ListActiveApplications(ctx context.Context, paymentID int64) ([]Application, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, payment_id, invoice_id, amount, reversed_at, created_at
FROM payment_applications WHERE payment_id=$1 AND reversed_at IS NULL ORDER BY id FOR UPDATE`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (r *txRepository) MarkApplicationsReversed(ctx context.Context, paymentID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE payment_applications SET reversed_at=$1 WHERE payment_id=$2 AND reversed_at IS NULL`,
		at, paymentID)
	return err
}

func (r *txRepository) NextNumber(ctx context.Context, scope sequence.Scope, scopeID int64, prefix string) (string, error) {
	gen := sequence.NewGenerator(sequence.NewTxRepository(r.tx))
	return gen.Next(ctx, scope, scopeID, prefix)
}

func (r *txRepository) AppendMovement(ctx context.Context, input ledger.AddMovementInput) (*ledger.Movement, error) {
	return ledger.AppendInTx(ctx, r.tx, input)
}

func scanPayment(row pgx.Row, id int64) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.TenantAccountID, &p.Amount, &p.Currency, &p.PaymentDate,
		&p.Method, &p.Reference, &p.ReceiptNumber, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func collectApplications(rows pgx.Rows) ([]Application, error) {
	var out []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.InvoiceID, &a.Amount, &a.ReversedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

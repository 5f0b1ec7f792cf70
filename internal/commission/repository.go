package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfolio/rentfolio/internal/shared"
)

// ErrDuplicateSource indicates a commission invoice already exists for the
// tenant invoice.
var ErrDuplicateSource = errors.New("commission: invoice already cascaded")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, invoice_id, owner_id, company_id, number, commission_rate,
base_amount, commission_amount, tax_amount, total, currency, due_date, status,
created_at, updated_at`

// Insert persists a commission invoice. The unique constraint on invoice_id
// enforces the one-cascade-per-invoice rule; a violation surfaces as
// ErrDuplicateSource.
func (r *Repository) Insert(ctx context.Context, ci CommissionInvoice) (*CommissionInvoice, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO commission_invoices
(invoice_id, owner_id, company_id, number, commission_rate, base_amount, commission_amount, tax_amount, total, currency, due_date, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id, created_at, updated_at`,
		ci.InvoiceID, ci.OwnerID, ci.CompanyID, ci.Number, ci.CommissionRate,
		ci.BaseAmount, ci.CommissionAmount, ci.TaxAmount, ci.Total, ci.Currency, ci.DueDate, ci.Status).
		Scan(&ci.ID, &ci.CreatedAt, &ci.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateSource
		}
		return nil, err
	}
	return &ci, nil
}

// Get returns a commission invoice by id.
func (r *Repository) Get(ctx context.Context, id int64) (*CommissionInvoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM commission_invoices WHERE id=$1`, id)
	return scan(row, fmt.Sprintf("commission invoice %d", id))
}

// GetByInvoice returns the commission invoice derived from a tenant invoice.
func (r *Repository) GetByInvoice(ctx context.Context, invoiceID int64) (*CommissionInvoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM commission_invoices WHERE invoice_id=$1`, invoiceID)
	return scan(row, fmt.Sprintf("commission invoice for invoice %d", invoiceID))
}

// ListByOwner returns an owner's commission invoices, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]CommissionInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM commission_invoices WHERE owner_id=$1 ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommissionInvoice
	for rows.Next() {
		ci, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ci)
	}
	return out, rows.Err()
}

func scan(row pgx.Row, what string) (*CommissionInvoice, error) {
	var ci CommissionInvoice
	err := row.Scan(&ci.ID, &ci.InvoiceID, &ci.OwnerID, &ci.CompanyID, &ci.Number, &ci.CommissionRate,
		&ci.BaseAmount, &ci.CommissionAmount, &ci.TaxAmount, &ci.Total, &ci.Currency, &ci.DueDate, &ci.Status,
		&ci.CreatedAt, &ci.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("commission: %s: %w", what, shared.ErrNotFound)
		}
		return nil, err
	}
	return &ci, nil
}

func scanRows(rows pgx.Rows) (*CommissionInvoice, error) {
	var ci CommissionInvoice
	err := rows.Scan(&ci.ID, &ci.InvoiceID, &ci.OwnerID, &ci.CompanyID, &ci.Number, &ci.CommissionRate,
		&ci.BaseAmount, &ci.CommissionAmount, &ci.TaxAmount, &ci.Total, &ci.Currency, &ci.DueDate, &ci.Status,
		&ci.CreatedAt, &ci.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

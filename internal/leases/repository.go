package leases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfolio/rentfolio/internal/shared"
)

// Repository provides PostgreSQL backed read access to leases and owners.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Columns is the select list matching Scan, shared with transactional reads
// in the billing engine.
const Columns = `id, property_id, owner_id, company_id, tenant_id, currency,
monthly_rent, additional_expenses, payment_frequency, payment_due_day,
late_fee_type, late_fee_value, adjustment_type, adjustment_value,
inflation_index_type, adjustment_frequency_months,
last_adjustment_date, next_adjustment_date, last_billing_date, next_billing_date,
created_at, updated_at`

// Get returns a lease by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Lease, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM leases WHERE id=$1`, id)
	lease, err := Scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("leases: lease %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return lease, nil
}

// GetOwner returns the owner's commission configuration.
func (r *Repository) GetOwner(ctx context.Context, id int64) (*Owner, error) {
	var o Owner
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, commission_rate FROM owners WHERE id=$1`, id).
		Scan(&o.ID, &o.CompanyID, &o.CommissionRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("leases: owner %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

// ListDueForBilling returns ids of leases whose next billing date has
// arrived, used by the scheduled billing run.
func (r *Repository) ListDueForBilling(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM leases
WHERE tenant_id IS NOT NULL AND next_billing_date IS NOT NULL AND next_billing_date <= $1 ORDER BY id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Scan reads one lease row selected with Columns.
func Scan(row pgx.Row) (*Lease, error) {
	var l Lease
	err := row.Scan(
		&l.ID, &l.PropertyID, &l.OwnerID, &l.CompanyID, &l.TenantID, &l.Currency,
		&l.MonthlyRent, &l.AdditionalExpenses, &l.PaymentFrequency, &l.PaymentDueDay,
		&l.LateFeeType, &l.LateFeeValue, &l.AdjustmentType, &l.AdjustmentValue,
		&l.InflationIndexType, &l.AdjustmentFrequencyMonths,
		&l.LastAdjustmentDate, &l.NextAdjustmentDate, &l.LastBillingDate, &l.NextBillingDate,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

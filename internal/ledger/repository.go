package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfolio/rentfolio/internal/platform/db"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// Repository encapsulates account and movement persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByLease(ctx context.Context, leaseID int64) (*Account, error)
	CreateAccount(ctx context.Context, leaseID int64, currency string) (*Account, error)
	ListMovements(ctx context.Context, accountID int64) ([]Movement, error)
	ListAccountIDs(ctx context.Context) ([]int64, error)
}

// TxRepository exposes operations available within a transaction.
type TxRepository interface {
	Append(ctx context.Context, input AddMovementInput) (*Movement, error)
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

const accountColumns = `id, lease_id, currency, balance, last_movement_at, created_at, updated_at`

func (r *repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM tenant_accounts WHERE id=$1`, id)
	return scanAccount(row, fmt.Sprintf("account %d", id))
}

func (r *repository) GetAccountByLease(ctx context.Context, leaseID int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM tenant_accounts WHERE lease_id=$1`, leaseID)
	return scanAccount(row, fmt.Sprintf("account for lease %d", leaseID))
}

// CreateAccount inserts the account if absent and returns the row either way.
// The ON CONFLICT clause makes concurrent first-access creation yield a
// single row.
func (r *repository) CreateAccount(ctx context.Context, leaseID int64, currency string) (*Account, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO tenant_accounts (lease_id, currency, balance)
VALUES ($1, $2, 0) ON CONFLICT (lease_id) DO NOTHING`, leaseID, currency)
	if err != nil {
		return nil, err
	}
	return r.GetAccountByLease(ctx, leaseID)
}

func (r *repository) ListMovements(ctx context.Context, accountID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, account_id, type, amount, balance_after, reference_type, reference_id, description, movement_date, created_at
FROM tenant_account_movements WHERE account_id=$1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Type, &m.Amount, &m.BalanceAfter,
			&m.ReferenceType, &m.ReferenceID, &m.Description, &m.MovementDate, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListAccountIDs returns every account id, used by the integrity scan.
func (r *repository) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tenant_accounts ORDER BY id`)
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

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Append(ctx context.Context, input AddMovementInput) (*Movement, error) {
	return AppendInTx(ctx, r.tx, input)
}

// AppendInTx appends a movement inside an already open transaction. It locks
// the account row for the remainder of the transaction, so concurrent appends
// to the same account serialize and the balance projection never loses an
// update. Billing and payment transactions that must post a movement
// atomically with their own writes call this directly.
func AppendInTx(ctx context.Context, tx pgx.Tx, input AddMovementInput) (*Movement, error) {
	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM tenant_accounts WHERE id=$1 FOR UPDATE`, input.AccountID)
	account, err := scanAccount(row, fmt.Sprintf("account %d", input.AccountID))
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(input.Amount)
	m := Movement{
		AccountID:     account.ID,
		Type:          input.Type,
		Amount:        input.Amount,
		BalanceAfter:  newBalance,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Description:   input.Description,
		MovementDate:  input.MovementDate,
	}
	err = tx.QueryRow(ctx, `INSERT INTO tenant_account_movements
(account_id, type, amount, balance_after, reference_type, reference_id, description, movement_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		m.AccountID, m.Type, m.Amount, m.BalanceAfter,
		m.ReferenceType, m.ReferenceID, m.Description, m.MovementDate).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE tenant_accounts SET balance=$1, last_movement_at=$2, updated_at=NOW() WHERE id=$3`,
		newBalance, m.MovementDate, account.ID); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanAccount(row pgx.Row, what string) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.LeaseID, &a.Currency, &a.Balance, &a.LastMovementAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ledger: %s: %w", what, shared.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

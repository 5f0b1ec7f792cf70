package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository over a pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewTxRepository constructs a repository bound to an open transaction so a
// number allocation commits or rolls back with the document it names.
func NewTxRepository(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// NextValue increments and returns the counter for the scope. The upsert is
// atomic; two concurrent calls serialize on the counter row.
func (r *Repository) NextValue(ctx context.Context, scope Scope, scopeID int64, prefix, period string) (int64, error) {
	var value int64
	err := r.db.QueryRow(ctx, `INSERT INTO document_sequences (scope_type, scope_id, prefix, period, last_value)
VALUES ($1, $2, $3, $4, 1)
ON CONFLICT (scope_type, scope_id, prefix, period)
DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`, scope, scopeID, prefix, period).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

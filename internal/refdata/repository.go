package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfolio/rentfolio/internal/shared"
)

// Repository provides PostgreSQL backed access to index series.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindLatestIndex returns the most recently published entry for the series.
func (r *Repository) FindLatestIndex(ctx context.Context, indexType IndexType) (*IndexEntry, error) {
	var e IndexEntry
	err := r.pool.QueryRow(ctx, `SELECT id, index_type, period, value, variation_monthly, published_at
FROM inflation_indexes WHERE index_type=$1 ORDER BY period DESC LIMIT 1`, indexType).
		Scan(&e.ID, &e.IndexType, &e.Period, &e.Value, &e.VariationMonthly, &e.PublishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("refdata: index %s: %w", indexType, shared.ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

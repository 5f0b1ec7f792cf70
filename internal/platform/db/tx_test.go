package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/shared"
)

func TestClassifyTagsRetryableFailures(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"serialization abort", "40001"},
		{"deadlock", "40P01"},
		{"unique violation race", "23505"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, Message: "concurrent update"}
			err := classify(fmt.Errorf("append movement: %w", pgErr))

			require.ErrorIs(t, err, shared.ErrConflict)
			var unwrapped *pgconn.PgError
			require.ErrorAs(t, err, &unwrapped)
			require.Equal(t, tt.code, unwrapped.Code)
		})
	}
}

func TestClassifyLeavesOtherErrorsAlone(t *testing.T) {
	plain := errors.New("connection reset")
	require.Equal(t, plain, classify(plain))
	require.False(t, errors.Is(classify(plain), shared.ErrConflict))

	pgErr := &pgconn.PgError{Code: "23503", Message: "foreign key violation"}
	wrapped := fmt.Errorf("insert invoice: %w", pgErr)
	require.Equal(t, wrapped, classify(wrapped))
	require.False(t, errors.Is(classify(wrapped), shared.ErrConflict))
}

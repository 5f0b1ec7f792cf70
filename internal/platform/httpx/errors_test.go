package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("ledger: account 7: %w", shared.ErrNotFound), http.StatusNotFound},
		{"invalid state", fmt.Errorf("billing: invoice 7 is paid: %w", shared.ErrInvalidState), http.StatusUnprocessableEntity},
		{"validation", fmt.Errorf("payments: amount must be positive: %w", shared.ErrValidation), http.StatusBadRequest},
		{"conflict is retryable", fmt.Errorf("platform/db: transaction lost a concurrency race (40001): %w", shared.ErrConflict), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tt.err)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

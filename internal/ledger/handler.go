package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rentfolio/rentfolio/internal/platform/httpx"
)

// Handler wires tenant account endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/leases/{leaseID}/account", h.createForLease)
	r.Get("/leases/{leaseID}/account", h.getByLease)
	r.Get("/accounts/{id}", h.get)
	r.Get("/accounts/{id}/movements", h.movements)
	r.Get("/accounts/{id}/balance", h.balance)
	r.Post("/accounts/{id}/movements", h.addMovement)
}

type accountResponse struct {
	ID             int64           `json:"id"`
	LeaseID        int64           `json:"lease_id"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	LastMovementAt *time.Time      `json:"last_movement_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type movementResponse struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	Type          MovementType    `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   int64           `json:"reference_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	MovementDate  time.Time       `json:"movement_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

type addMovementRequest struct {
	Type          MovementType    `json:"type" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   int64           `json:"reference_id"`
	Description   string          `json:"description"`
	MovementDate  *time.Time      `json:"movement_date"`
}

func toAccountResponse(a *Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		LeaseID:        a.LeaseID,
		Currency:       a.Currency,
		Balance:        a.Balance,
		LastMovementAt: a.LastMovementAt,
		CreatedAt:      a.CreatedAt,
	}
}

func toMovementResponse(m *Movement) movementResponse {
	return movementResponse{
		ID:            m.ID,
		AccountID:     m.AccountID,
		Type:          m.Type,
		Amount:        m.Amount,
		BalanceAfter:  m.BalanceAfter,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		Description:   m.Description,
		MovementDate:  m.MovementDate,
		CreatedAt:     m.CreatedAt,
	}
}

func (h *Handler) createForLease(w http.ResponseWriter, r *http.Request) {
	leaseID, ok := pathID(w, r, "leaseID", "invalid lease id")
	if !ok {
		return
	}
	account, err := h.service.CreateForLease(r.Context(), leaseID)
	if err != nil {
		h.logger.Error("create account", slog.Int64("lease_id", leaseID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) getByLease(w http.ResponseWriter, r *http.Request) {
	leaseID, ok := pathID(w, r, "leaseID", "invalid lease id")
	if !ok {
		return
	}
	account, err := h.service.GetByLease(r.Context(), leaseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid account id")
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid account id")
	if !ok {
		return
	}
	movements, err := h.service.ListMovements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for i := range movements {
		out = append(out, toMovementResponse(&movements[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid account id")
	if !ok {
		return
	}
	info, err := h.service.BalanceInfo(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

func (h *Handler) addMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid account id")
	if !ok {
		return
	}
	var req addMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := AddMovementInput{
		AccountID:     id,
		Type:          req.Type,
		Amount:        req.Amount,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Description:   req.Description,
	}
	if req.MovementDate != nil {
		input.MovementDate = *req.MovementDate
	}
	movement, err := h.service.AddMovement(r.Context(), input)
	if err != nil {
		h.logger.Error("add movement", slog.Int64("account_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func pathID(w http.ResponseWriter, r *http.Request, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", message)
		return 0, false
	}
	return id, true
}

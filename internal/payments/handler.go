package payments

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rentfolio/rentfolio/internal/platform/httpx"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// Handler wires payment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers payment routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.create)
	r.Get("/payments", h.list)
	r.Get("/payments/{id}", h.get)
	r.Patch("/payments/{id}", h.update)
	r.Post("/payments/{id}/confirm", h.confirm)
	r.Post("/payments/{id}/cancel", h.cancel)
	r.Get("/payments/{id}/applications", h.applications)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInput{
		TenantAccountID: req.TenantAccountID,
		Amount:          req.Amount,
		Method:          req.Method,
		Reference:       req.Reference,
		Items:           toItems(req.Items),
	}
	if req.PaymentDate != nil {
		input.PaymentDate = *req.PaymentDate
	}
	payment, err := h.service.Create(actorContext(r, req.ActingUserID), input)
	if err != nil {
		h.logger.Error("create payment", slog.Int64("account_id", req.TenantAccountID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}
	var req updatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payment, err := h.service.UpdatePending(actorContext(r, req.ActingUserID), id, UpdateInput{
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
		Reference:   req.Reference,
		Items:       toItems(req.Items),
	})
	if err != nil {
		h.logger.Error("update payment", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filters ListFilters
	q := r.URL.Query()
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		filters.AccountID = &id
	}
	if v := q.Get("status"); v != "" {
		status := Status(v)
		filters.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		filters.Offset = offset
	}

	paymentsList, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(paymentsList))
	for i := range paymentsList {
		out = append(out, toPaymentResponse(&paymentsList[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm", h.service.Confirm)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.service.Cancel)
}

func (h *Handler) applications(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}
	apps, err := h.service.ListApplications(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApplicationResponses(apps))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id int64) (*Payment, error)) {
	id, ok := paymentID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}
	payment, err := fn(actorContext(r, req.ActingUserID), id)
	if err != nil {
		h.logger.Error(name+" payment", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

// actorContext stamps the request context with the acting user from the body,
// so audit records carry who triggered the operation.
func actorContext(r *http.Request, actingUserID *int64) context.Context {
	ctx := r.Context()
	if actingUserID != nil {
		ctx = shared.WithActor(ctx, *actingUserID)
	}
	return ctx
}

func paymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payment id")
		return 0, false
	}
	return id, true
}

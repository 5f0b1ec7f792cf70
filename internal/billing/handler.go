package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rentfolio/rentfolio/internal/platform/httpx"
	"github.com/rentfolio/rentfolio/internal/shared"
)

// Handler wires invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.create)
	r.Get("/invoices", h.list)
	r.Get("/invoices/{id}", h.get)
	r.Post("/invoices/{id}/issue", h.issue)
	r.Post("/invoices/{id}/cancel", h.cancel)
	r.Post("/leases/{leaseID}/invoices/generate", h.generate)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	leaseID, err := strconv.ParseInt(chi.URLParam(r, "leaseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid lease id")
		return
	}

	var req generateInvoiceRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}

	result, err := h.service.GenerateForLease(r.Context(), leaseID, req.toOptions())
	if err != nil {
		h.logger.Error("generate invoice", slog.Int64("lease_id", leaseID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGenerateResponse(result))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	invoice, err := h.service.Create(r.Context(), CreateInput{
		LeaseID:     req.LeaseID,
		Subtotal:    req.Subtotal,
		LateFee:     req.LateFee,
		Adjustments: req.Adjustments,
		Override: PeriodOverride{
			Start:   req.PeriodStart,
			End:     req.PeriodEnd,
			DueDate: req.DueDate,
		},
	})
	if err != nil {
		h.logger.Error("create invoice", slog.Int64("lease_id", req.LeaseID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(invoice))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	invoices, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, toInvoiceResponse(&invoices[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "issue", h.service.Issue)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id int64) (*Invoice, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	invoice, err := fn(r.Context(), id)
	if err != nil {
		h.logger.Error(name+" invoice", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	var filters ListFilters
	q := r.URL.Query()
	if v := q.Get("lease_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, shared.ErrValidation
		}
		filters.LeaseID = &id
	}
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, shared.ErrValidation
		}
		filters.AccountID = &id
	}
	if v := q.Get("status"); v != "" {
		status := InvoiceStatus(v)
		filters.Status = &status
	}
	if v := q.Get("due_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, shared.ErrValidation
		}
		filters.DueFrom = &t
	}
	if v := q.Get("due_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, shared.ErrValidation
		}
		filters.DueTo = &t
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filters, shared.ErrValidation
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filters, shared.ErrValidation
		}
		filters.Offset = offset
	}
	return filters, nil
}

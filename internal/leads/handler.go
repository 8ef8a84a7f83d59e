package leads

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// Handler serves the lead JSON API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	guard       guard.Middleware
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, g guard.Middleware, idem *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: g, idempotency: idem}
}

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermViewLeads))
		r.Get("/", h.list)
		r.Get("/board", h.board)
		r.Get("/{id}", h.show)
	})
	r.With(h.guard.Require(rbac.PermCreateLeads)).Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermEditLeads))
		r.Patch("/{id}", h.update)
		r.Post("/{id}/status", h.moveStatus)
		r.With(h.guard.Require(rbac.PermCreateCustomers)).Post("/{id}/convert", h.convert)
	})
	r.With(h.guard.Require(rbac.PermDeleteLeads)).Delete("/{id}", h.delete)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermAssignLeads))
		r.Post("/{id}/assign", h.assign)
		r.Post("/{id}/unassign", h.unassign)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := shared.PaginationFromRequest(r)
	filter := Filter{
		Status:     Status(q.Get("status")),
		Unassigned: q.Get("unassigned") == "true",
		Search:     q.Get("search"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if raw := q.Get("assignedTo"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.AssignedTo = id
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Lead]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context(), shared.PaginationFromRequest(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, board)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) moveStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req MoveStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.MoveStatus(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req AssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Assign(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lead, err := h.service.Unassign(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get(shared.IdempotencyHeader)
	namespace := "lead-convert"
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		namespace += ":" + p.CompanyID.String()
	}
	if h.idempotency != nil && key != "" {
		if err := h.idempotency.Claim(r.Context(), namespace, key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
				return
			}
			h.fail(w, r, err)
			return
		}
	}
	result, err := h.service.Convert(r.Context(), id)
	if err != nil {
		if h.idempotency != nil {
			h.idempotency.Release(r.Context(), namespace, key)
		}
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "lead request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

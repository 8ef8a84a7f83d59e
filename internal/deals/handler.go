package deals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// Handler serves the deal JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   guard.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, g guard.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: g}
}

// MountRoutes registers deal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermViewDeals))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.guard.Require(rbac.PermCreateDeals)).Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermEditDeals))
		r.Patch("/{id}", h.update)
		r.Post("/{id}/stage", h.moveStage)
	})
	r.With(h.guard.Require(rbac.PermDeleteDeals)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PaginationFromRequest(r)
	q := r.URL.Query()
	filter := Filter{Stage: Stage(q.Get("stage")), Limit: page.Limit, Offset: page.Offset}
	if filter.Stage != "" && !filter.Stage.Valid() {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if raw := q.Get("customerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.CustomerID = id
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Deal]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	deal, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	deal, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, deal)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateDealRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	deal, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
}

func (h *Handler) moveStage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req MoveStageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	deal, err := h.service.MoveStage(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
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

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "deal request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

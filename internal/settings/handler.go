package settings

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// Handler serves the settings and backup endpoints.
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

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermAccessSettings))
		r.Get("/", h.show)
		r.With(h.guard.Require(rbac.PermManageSettings)).Put("/", h.update)
	})
	r.With(h.guard.Require(rbac.PermManageBackups)).Get("/backup", h.backup)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	settings, err := h.service.Update(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) backup(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Backup(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+BackupFilename(b.CompanyID, b.ExportedAt)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(b); err != nil {
		h.logger.WarnContext(r.Context(), "backup stream interrupted", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "settings request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// Handler serves the dashboard and report endpoints.
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

// MountRoutes registers GET /api/dashboard. The role decides which dashboard
// is built, so the route only requires an authenticated principal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Require()).Get("/", h.dashboard)
}

// MountReportRoutes registers the /api/reports endpoints.
func (h *Handler) MountReportRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermAccessReports))
		r.Get("/leads", h.leadFunnel)
		r.Get("/pipeline", h.pipeline)
		r.Get("/performance", h.performance)
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) leadFunnel(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.LeadFunnel(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) pipeline(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Pipeline(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	reps, err := h.service.Performance(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reps": reps})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "dashboard request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

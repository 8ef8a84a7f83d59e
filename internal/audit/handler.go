package audit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
	dateLayout       = "2006-01-02"
)

// Handler serves the audit JSON API.
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

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportRateLimit, exportRateWindow, httprate.WithKeyFuncs(rateLimitKey))
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermAccessUserManagement))
		r.Get("/", h.timeline)
		r.With(limiter).Get("/export.csv", h.export)
	})
}

// rateLimitKey limits exports per principal, falling back to the client IP.
func rateLimitKey(r *http.Request) (string, error) {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return "user:" + p.ID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	var f TimelineFilters
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("%w: from must be YYYY-MM-DD", httpx.ErrValidation)
		}
		f.From = from
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("%w: to must be YYYY-MM-DD", httpx.ErrValidation)
		}
		// inclusive of the whole day
		f.To = to.AddDate(0, 0, 1)
	}
	if v := strings.TrimSpace(q.Get("actorId")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fmt.Errorf("%w: actorId", httpx.ErrValidation)
		}
		f.ActorID = id
	}
	f.Entity = strings.TrimSpace(q.Get("entity"))
	f.Action = strings.TrimSpace(q.Get("action"))
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 {
			return f, fmt.Errorf("%w: page", httpx.ErrValidation)
		}
		f.Page = page
	}
	f.PageSize = httpx.QueryInt(r, "pageSize", defaultPageSize)
	return f, nil
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := WriteCSV(rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "audit request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

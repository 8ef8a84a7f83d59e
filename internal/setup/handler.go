package setup

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// TokenHeader carries the operator's setup secret.
const TokenHeader = "X-Setup-Token"

// Handler serves POST /api/setup.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idempotency: idem}
}

// MountRoutes registers the setup route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(TokenHeader)
	if err := h.service.Authorize(token); err != nil {
		h.logger.WarnContext(r.Context(), "setup rejected", slog.String("remote", r.RemoteAddr))
		httpx.RespondError(w, err)
		return
	}
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := r.Header.Get(shared.IdempotencyHeader)
	if h.idempotency != nil && key != "" {
		if err := h.idempotency.Claim(r.Context(), "setup", key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
				return
			}
			h.fail(w, r, err)
			return
		}
	}
	result, err := h.service.Create(r.Context(), token, req)
	if err != nil {
		if h.idempotency != nil {
			h.idempotency.Release(r.Context(), "setup", key)
		}
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "tenant created", slog.String("company_id", result.CompanyID.String()))
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "setup request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

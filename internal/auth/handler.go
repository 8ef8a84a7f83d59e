package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	"github.com/odyssey-crm/odyssey-crm/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *TokenIssuer
	guard          *guard.Guard
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenIssuer, g *guard.Guard, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		tokens:         tokens,
		guard:          g,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
	}
}

// MountRoutes registers browser auth routes under /auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// MountAPIRoutes registers token and identity routes under /api.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/auth/token", h.issueToken)
	r.Get("/me", h.me)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8" trim:"-"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if rbac.PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, guard.DefaultDashboardPath, http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	// Password is never echoed back to the page.
	data := loginPageData{Form: loginForm{Email: form.Email}, Errors: map[string]string{}}

	if err := shared.Validate(&form); err != nil {
		data.Errors["general"] = "Enter a valid email and a password of at least 8 characters"
		h.renderLogin(w, r, data, http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		data.Errors["general"] = "Invalid email or password"
		h.renderLogin(w, r, data, http.StatusBadRequest)
		return
	}
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.Rotate()
	sess.SetUser(user.ID.String())
	if _, err := h.csrfManager.Rebind(r.Context(), sess); err != nil {
		h.logger.Warn("rebind csrf", slog.Any("error", err))
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + user.Name})
	http.Redirect(w, r, guard.DefaultDashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, guard.DefaultLoginPath, http.StatusSeeOther)
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req loginForm
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.Validate(&req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.RespondError(w, httpx.ErrUnauthenticated)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	token, expires, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires})
}

type meResponse struct {
	User        rbac.Principal    `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
	Dashboard   rbac.Permission   `json:"dashboard"`
}

// me reports the principal and its permission list. The list is advisory for
// UI rendering; every action is still checked server side.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	access, err := h.guard.AuthorizeAll(r.Context(), "me")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dashboard, _ := rbac.DashboardPermission(access.Principal.Role)
	httpx.JSON(w, http.StatusOK, meResponse{
		User:        access.Principal,
		Permissions: rbac.Permissions(access.Principal.Role),
		Dashboard:   dashboard,
	})
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

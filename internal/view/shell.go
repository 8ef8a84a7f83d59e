package view

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// ShellPage is one browser page backed by a JSON endpoint.
type ShellPage struct {
	Path       string
	Title      string
	Section    string
	Endpoint   string
	Permission rbac.Permission
}

// ShellPages lists the application shell pages and the permission each needs.
var ShellPages = []ShellPage{
	{Path: "/dashboard", Title: "Dashboard", Section: "dashboard", Endpoint: "/api/dashboard"},
	{Path: "/leads", Title: "Leads", Section: "leads", Endpoint: "/api/leads/board", Permission: rbac.PermViewLeads},
	{Path: "/customers", Title: "Customers", Section: "customers", Endpoint: "/api/customers", Permission: rbac.PermViewCustomers},
	{Path: "/deals", Title: "Deals", Section: "deals", Endpoint: "/api/deals", Permission: rbac.PermViewDeals},
	{Path: "/tasks", Title: "Tasks", Section: "tasks", Endpoint: "/api/tasks", Permission: rbac.PermViewTasks},
	{Path: "/users", Title: "Team", Section: "users", Endpoint: "/api/users", Permission: rbac.PermViewTeamMembers},
	{Path: "/reports", Title: "Reports", Section: "reports", Endpoint: "/api/reports/pipeline", Permission: rbac.PermAccessReports},
	{Path: "/settings", Title: "Settings", Section: "settings", Endpoint: "/api/settings", Permission: rbac.PermAccessSettings},
	{Path: "/audit", Title: "Audit log", Section: "audit", Endpoint: "/api/audit", Permission: rbac.PermAccessUserManagement},
}

// Shell serves the browser application pages.
type Shell struct {
	logger    *slog.Logger
	templates *Engine
	csrf      *shared.CSRFManager
	pages     guard.Middleware
}

// NewShell constructs the shell handler.
func NewShell(logger *slog.Logger, templates *Engine, csrf *shared.CSRFManager, pages guard.Middleware) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{logger: logger, templates: templates, csrf: csrf, pages: pages}
}

// MountRoutes registers /app pages.
func (s *Shell) MountRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, guard.DefaultDashboardPath, http.StatusSeeOther)
	})
	for _, page := range ShellPages {
		var perms []rbac.Permission
		if page.Permission != "" {
			perms = append(perms, page.Permission)
		}
		r.With(s.pages.RequirePage(perms...)).Get(page.Path, s.render(page))
	}
}

func (s *Shell) render(page ShellPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		access, _ := guard.AccessFromContext(r.Context())
		sess := shared.SessionFromContext(r.Context())
		token, _ := s.csrf.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := TemplateData{
			Title:       page.Title,
			CSRFToken:   token,
			Flash:       flash,
			CurrentPath: r.URL.Path,
			User:        &access.Principal,
			Data:        page,
		}
		if err := s.templates.Render(w, "pages/app.html", data); err != nil {
			s.logger.Error("render shell", slog.String("page", page.Section), slog.Any("error", err))
		}
	}
}

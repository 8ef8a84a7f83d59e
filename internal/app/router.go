package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/audit"
	"github.com/odyssey-crm/odyssey-crm/internal/auth"
	"github.com/odyssey-crm/odyssey-crm/internal/customers"
	"github.com/odyssey-crm/odyssey-crm/internal/dashboard"
	"github.com/odyssey-crm/odyssey-crm/internal/deals"
	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/leads"
	"github.com/odyssey-crm/odyssey-crm/internal/observability"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/settings"
	"github.com/odyssey-crm/odyssey-crm/internal/setup"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	"github.com/odyssey-crm/odyssey-crm/internal/tasks"
	"github.com/odyssey-crm/odyssey-crm/internal/users"
	"github.com/odyssey-crm/odyssey-crm/internal/view"
	"github.com/odyssey-crm/odyssey-crm/jobs"
	"github.com/odyssey-crm/odyssey-crm/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Authenticator  *auth.Authenticator
	Guard          guard.Middleware
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	SetupHandler       *setup.Handler
	LeadsHandler       *leads.Handler
	CustomersHandler   *customers.Handler
	DealsHandler       *deals.Handler
	TasksHandler       *tasks.Handler
	UsersHandler       *users.Handler
	DashboardHandler   *dashboard.Handler
	SettingsHandler    *settings.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Shell              *view.Shell
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Authenticator:  params.Authenticator,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if rbac.PrincipalFromContext(r.Context()) == nil {
			http.Redirect(w, r, guard.DefaultLoginPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, guard.DefaultDashboardPath, http.StatusSeeOther)
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.Shell != nil {
		r.Route("/app", params.Shell.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		if params.SetupHandler != nil {
			r.Route("/setup", params.SetupHandler.MountRoutes)
		}
		if params.AuthHandler != nil {
			params.AuthHandler.MountAPIRoutes(r)
		}
		if params.LeadsHandler != nil {
			r.Route("/leads", params.LeadsHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.DealsHandler != nil {
			r.Route("/deals", params.DealsHandler.MountRoutes)
		}
		if params.TasksHandler != nil {
			r.Route("/tasks", params.TasksHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
			r.Route("/reports", params.DashboardHandler.MountReportRoutes)
		}
		if params.JobHandler != nil && params.Guard.Guard != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.Guard.Require(rbac.PermAccessUserManagement))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler caches static assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

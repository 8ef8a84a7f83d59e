package guard

import (
	"net/http"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// Default redirect targets for page routes.
const (
	DefaultLoginPath     = "/auth/login"
	DefaultDashboardPath = "/app/dashboard"
)

// Middleware adapts the Guard to chi route groups.
type Middleware struct {
	Guard         *Guard
	LoginPath     string
	DashboardPath string
}

// Require admits API requests whose principal holds every perm. Rejections are
// answered with problem JSON that never names the missing permission.
func (m Middleware) Require(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := m.Guard.AuthorizeAll(r.Context(), r.URL.Path, perms...)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAccess(r.Context(), access)))
		})
	}
}

// RequirePage admits page requests; unauthenticated visitors are sent to the
// login page and forbidden ones to their dashboard.
func (m Middleware) RequirePage(perms ...rbac.Permission) func(http.Handler) http.Handler {
	login := m.LoginPath
	if login == "" {
		login = DefaultLoginPath
	}
	home := m.DashboardPath
	if home == "" {
		home = DefaultDashboardPath
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := m.Guard.AuthorizeAll(r.Context(), r.URL.Path, perms...)
			switch httpx.StatusOf(err) {
			case http.StatusOK:
				next.ServeHTTP(w, r.WithContext(ContextWithAccess(r.Context(), access)))
			case http.StatusUnauthorized:
				http.Redirect(w, r, login, http.StatusSeeOther)
			case http.StatusForbidden:
				http.Redirect(w, r, home, http.StatusSeeOther)
			default:
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		})
	}
}

package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, p *rbac.Principal) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		_, ok := AccessFromContext(r.Context())
		assert.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if p != nil {
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), *p))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, reached
}

func TestRequireUnauthenticated(t *testing.T) {
	m := Middleware{Guard: New(nil, nil)}
	rr, reached := serve(t, m.Require(rbac.PermAccessUserManagement), nil)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireForbiddenHidesPermission(t *testing.T) {
	m := Middleware{Guard: New(nil, nil)}
	rr, reached := serve(t, m.Require(rbac.PermAccessUserManagement), principal(rbac.RoleManager))
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NotContains(t, rr.Body.String(), string(rbac.PermAccessUserManagement))
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestRequireConfigurationError(t *testing.T) {
	m := Middleware{Guard: New(nil, nil)}
	p := principal(rbac.RoleAdmin)
	p.CompanyID = uuid.Nil
	rr, reached := serve(t, m.Require(rbac.PermAccessUserManagement), p)
	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRequireAdmits(t *testing.T) {
	m := Middleware{Guard: New(nil, nil)}
	rr, reached := serve(t, m.Require(rbac.PermAccessUserManagement), principal(rbac.RoleAdmin))
	require.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequirePageRedirects(t *testing.T) {
	m := Middleware{Guard: New(nil, nil)}

	rr, reached := serve(t, m.RequirePage(rbac.PermManageSettings), nil)
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, DefaultLoginPath, rr.Header().Get("Location"))

	rr, reached = serve(t, m.RequirePage(rbac.PermManageSettings), principal(rbac.RoleSales))
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, DefaultDashboardPath, rr.Header().Get("Location"))

	rr, reached = serve(t, m.RequirePage(rbac.PermManageSettings), principal(rbac.RoleAdmin))
	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

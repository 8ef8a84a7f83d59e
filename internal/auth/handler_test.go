package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-crm/odyssey-crm/internal/auth"
	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	"github.com/odyssey-crm/odyssey-crm/internal/view"
	_ "github.com/odyssey-crm/odyssey-crm/testing"
)

type stubRepo struct {
	user    *auth.User
	touched int
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, httpx.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, httpx.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) TouchLogin(ctx context.Context, id uuid.UUID) error {
	s.touched++
	return nil
}

type env struct {
	handler  *auth.Handler
	service  *auth.Service
	tokens   *auth.TokenIssuer
	sessions *shared.SessionManager
}

func newEnv(t *testing.T, repo auth.Repository) env {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	service := auth.NewService(repo, nil, nil)
	tokens := auth.NewTokenIssuer("jwt-secret", time.Hour)
	handler := auth.NewHandler(nil, service, tokens, guard.New(nil, nil), templates, sessionManager, csrfManager)
	return env{handler: handler, service: service, tokens: tokens, sessions: sessionManager}
}

func (e env) router() http.Handler {
	r := chi.NewRouter()
	r.Use(e.sessions.Middleware(nil))
	r.Use(auth.Authenticator{Service: e.service, Tokens: e.tokens}.Middleware)
	r.Route("/auth", e.handler.MountRoutes)
	r.Route("/api", e.handler.MountAPIRoutes)
	return r
}

func activeUser(t *testing.T, role rbac.Role) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           uuid.New(),
		CompanyID:    uuid.New(),
		Email:        "user@test.local",
		Name:         "Test User",
		Role:         role,
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func TestLoginPage(t *testing.T) {
	e := newEnv(t, &stubRepo{})
	res := httptest.NewRecorder()
	e.router().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `name="csrf_token"`)
}

func TestLoginInvalidCredentials(t *testing.T) {
	e := newEnv(t, &stubRepo{user: activeUser(t, rbac.RoleSales)})

	form := url.Values{}
	form.Set("email", "user@test.local")
	form.Set("password", "wrongpass")
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	e.router().ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	assert.NotContains(t, res.Body.String(), "wrongpass")
}

func TestLoginThenMe(t *testing.T) {
	user := activeUser(t, rbac.RoleManager)
	repo := &stubRepo{user: user}
	e := newEnv(t, repo)
	router := e.router()

	form := url.Values{}
	form.Set("email", "USER@test.local")
	form.Set("password", "correctpass")
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, guard.DefaultDashboardPath, res.Header().Get("Location"))
	assert.Equal(t, 1, repo.touched)
	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)

	meReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, c := range cookies {
		meReq.AddCookie(c)
	}
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, meReq)
	require.Equal(t, http.StatusOK, meRes.Code)

	var body struct {
		User        rbac.Principal    `json:"user"`
		Permissions []rbac.Permission `json:"permissions"`
		Dashboard   rbac.Permission   `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(meRes.Body.Bytes(), &body))
	assert.Equal(t, user.ID, body.User.ID)
	assert.Equal(t, rbac.RoleManager, body.User.Role)
	assert.Equal(t, rbac.PermAccessManagerDashboard, body.Dashboard)
	assert.Contains(t, body.Permissions, rbac.PermAssignLeads)
	assert.NotContains(t, body.Permissions, rbac.PermManageSettings)
}

func TestMeWithoutPrincipalIsUnauthorized(t *testing.T) {
	e := newEnv(t, &stubRepo{})
	res := httptest.NewRecorder()
	e.router().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestTokenFlow(t *testing.T) {
	user := activeUser(t, rbac.RoleSales)
	e := newEnv(t, &stubRepo{user: user})
	router := e.router()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"email":"user@test.local","password":"correctpass"}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var tok struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)

	meReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, meReq)
	assert.Equal(t, http.StatusOK, meRes.Code)

	badReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	badReq.Header.Set("Authorization", "Bearer "+tok.AccessToken+"x")
	badRes := httptest.NewRecorder()
	router.ServeHTTP(badRes, badReq)
	assert.Equal(t, http.StatusUnauthorized, badRes.Code)
}

func TestTokenRejectsWrongPassword(t *testing.T) {
	e := newEnv(t, &stubRepo{user: activeUser(t, rbac.RoleSales)})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"email":"user@test.local","password":"incorrect"}`))
	res := httptest.NewRecorder()
	e.router().ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	user := activeUser(t, rbac.RoleAdmin)
	e := newEnv(t, &stubRepo{user: user})
	token, _, err := e.tokens.Issue(user.ID)
	require.NoError(t, err)

	user.IsActive = false
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	e.router().ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRoleChangeTakesEffectNextRequest(t *testing.T) {
	user := activeUser(t, rbac.RoleAdmin)
	e := newEnv(t, &stubRepo{user: user})
	token, _, err := e.tokens.Issue(user.ID)
	require.NoError(t, err)
	router := e.router()

	me := func() rbac.Role {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		var body struct {
			User rbac.Principal `json:"user"`
		}
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		return body.User.Role
	}

	assert.Equal(t, rbac.RoleAdmin, me())
	user.Role = rbac.RoleSupport
	assert.Equal(t, rbac.RoleSupport, me())
}

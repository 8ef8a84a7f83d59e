package app

import (
	"bytes"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	stdtesting "testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	testenv "github.com/odyssey-crm/odyssey-crm/testing"
)

func TestLoadConfigDefaults(t *stdtesting.T) {
	testenv.Env(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, testenv.SetupToken, cfg.SetupToken)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsShortJWTSecret(t *stdtesting.T) {
	testenv.Env(t)
	t.Setenv("JWT_SECRET", "short")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret")
}

func TestLoadConfigRejectsNonPositiveRateLimit(t *stdtesting.T) {
	testenv.Env(t)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestInTestMode(t *stdtesting.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func csrfHandler(t *stdtesting.T) (http.Handler, *shared.CSRFManager) {
	t.Helper()
	manager := shared.NewCSRFManager("csrf-secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return CSRF(manager, logger)(next), manager
}

func TestCSRFExemptions(t *stdtesting.T) {
	handler, _ := csrfHandler(t)

	cases := []struct {
		name   string
		method string
		path   string
		bearer bool
	}{
		{"read", http.MethodGet, "/api/leads", false},
		{"setup", http.MethodPost, "/api/setup", false},
		{"token issuance", http.MethodPost, "/api/auth/token", false},
		{"bearer write", http.MethodPost, "/api/leads", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *stdtesting.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.bearer {
				req.Header.Set("Authorization", "Bearer abc")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}

func TestCSRFRejectsCookieWriteWithoutToken(t *stdtesting.T) {
	handler, _ := csrfHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(shared.ContextWithSession(req.Context(), &shared.Session{ID: "sess"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFAcceptsHeaderToken(t *stdtesting.T) {
	handler, manager := csrfHandler(t)
	sess := &shared.Session{ID: "sess"}
	token, err := manager.EnsureToken(t.Context(), sess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFAcceptsFormField(t *stdtesting.T) {
	handler, manager := csrfHandler(t)
	sess := &shared.Session{ID: "sess"}
	token, err := manager.EnsureToken(t.Context(), sess)
	require.NoError(t, err)

	body := strings.NewReader(shared.CSRFFormField + "=" + token)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAccessLogRecordsStatus(t *stdtesting.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/api/leads"`)
}

func TestRouterLogsEachRequestOnce(t *stdtesting.T) {
	var std bytes.Buffer
	log.SetOutput(&std)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var structured bytes.Buffer
	router := NewRouter(RouterParams{
		Logger:         slog.New(slog.NewJSONHandler(&structured, nil)),
		Config:         &Config{RateLimitPerMinute: 100},
		SessionManager: shared.NewSessionManager(client, "odyssey_session", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf-secret"),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, std.String())
	assert.Equal(t, 1, strings.Count(structured.String(), `"msg":"http request"`))
}

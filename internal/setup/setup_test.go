package setup

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

type memoryStore struct {
	tenants []Tenant
	emails  map[string]bool
}

func (m *memoryStore) Bootstrap(_ context.Context, t Tenant) error {
	if m.emails == nil {
		m.emails = map[string]bool{}
	}
	if m.emails[t.AdminEmail] {
		return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	m.emails[t.AdminEmail] = true
	m.tenants = append(m.tenants, t)
	return nil
}

func newTestService(store Store, token string) *Service {
	svc := NewService(store, token)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func validRequest() Request {
	return Request{CompanyName: " Acme ", AdminName: "Ada", AdminEmail: "Ada@Acme.test", Password: "correct horse"}
}

func TestCreateProvisionsTenant(t *testing.T) {
	store := &memoryStore{}
	svc := newTestService(store, "s3cret")

	result, err := svc.Create(context.Background(), "s3cret", validRequest())
	require.NoError(t, err)
	require.Len(t, store.tenants, 1)

	created := store.tenants[0]
	assert.Equal(t, result.CompanyID, created.CompanyID)
	assert.Equal(t, result.AdminID, created.AdminID)
	assert.Equal(t, "Acme", created.CompanyName)
	assert.Equal(t, "ada@acme.test", created.AdminEmail)
	assert.Equal(t, "UTC", created.Timezone)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")))
}

func TestCreateChecksToken(t *testing.T) {
	store := &memoryStore{}

	_, err := newTestService(store, "s3cret").Create(context.Background(), "", validRequest())
	assert.ErrorIs(t, err, httpx.ErrUnauthenticated)

	_, err = newTestService(store, "s3cret").Create(context.Background(), "guess", validRequest())
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = newTestService(store, "").Create(context.Background(), "", validRequest())
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	assert.Empty(t, store.tenants)
}

func TestCreateValidates(t *testing.T) {
	svc := newTestService(&memoryStore{}, "s3cret")
	req := validRequest()
	req.Password = "short"
	_, err := svc.Create(context.Background(), "s3cret", req)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	req = validRequest()
	req.Timezone = "Mars/Olympus"
	_, err = svc.Create(context.Background(), "s3cret", req)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	req = validRequest()
	req.AdminName = "   "
	_, err = svc.Create(context.Background(), "s3cret", req)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc := newTestService(&memoryStore{}, "s3cret")
	_, err := svc.Create(context.Background(), "s3cret", validRequest())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "s3cret", validRequest())
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCompanyQueryIsUnscoped(t *testing.T) {
	query, args, err := companyQuery(Tenant{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO companies (id,name) VALUES ($1,$2)", query)
	assert.Len(t, args, 2)
}

func newRouter(t *testing.T, store Store) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHandler(nil, newTestService(store, "s3cret"), shared.NewIdempotencyStore(client, time.Hour))
	r := chi.NewRouter()
	r.Route("/api/setup", h.MountRoutes)
	return r
}

func post(router http.Handler, token, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/setup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	if key != "" {
		req.Header.Set(shared.IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const setupBody = `{"companyName":"Acme","adminName":"Ada","adminEmail":"ada@acme.test","password":"correct horse"}`

func TestHandlerCreatesOnce(t *testing.T) {
	store := &memoryStore{}
	router := newRouter(t, store)

	rec := post(router, "s3cret", "k1", setupBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "companyId")

	rec = post(router, "s3cret", "k1", setupBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, store.tenants, 1)
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	store := &memoryStore{}
	router := newRouter(t, store)

	assert.Equal(t, http.StatusUnauthorized, post(router, "", "", setupBody).Code)
	assert.Equal(t, http.StatusForbidden, post(router, "wrong", "", setupBody).Code)
	assert.Empty(t, store.tenants)
}

func TestHandlerReleasesKeyOnFailure(t *testing.T) {
	store := &memoryStore{}
	router := newRouter(t, store)

	rec := post(router, "s3cret", "k2", `{"companyName":"Acme","adminName":"Ada","adminEmail":"bad","password":"correct horse"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(router, "s3cret", "k2", setupBody)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

type stubRepo struct {
	rows        []TimelineRow
	lastFilters TimelineFilters
	lastScope   tenant.Scope
	lastLimit   int
	lastOffset  int
}

func (s *stubRepo) Timeline(_ context.Context, scope tenant.Scope, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastFilters = f
	s.lastScope, s.lastLimit, s.lastOffset = scope, limit, offset
	out := s.rows
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func rowsN(n int) []TimelineRow {
	out := make([]TimelineRow, n)
	for i := range out {
		out[i] = TimelineRow{ID: int64(n - i), Action: "update", Entity: "lead", EntityID: uuid.NewString()}
	}
	return out
}

func as(role rbac.Role, company uuid.UUID) context.Context {
	return rbac.ContextWithPrincipal(context.Background(), rbac.Principal{ID: uuid.New(), CompanyID: company, Role: role})
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: rowsN(5)}
	svc := NewService(repo, guard.New(nil, nil))
	company := uuid.New()

	result, err := svc.Timeline(as(rbac.RoleAdmin, company), TimelineFilters{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, company, repo.lastScope.CompanyID())

	result, err = svc.Timeline(as(rbac.RoleAdmin, company), TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.PrevPage)
	assert.Equal(t, 4, repo.lastOffset)
}

func TestTimelineAdminOnly(t *testing.T) {
	svc := NewService(&stubRepo{}, guard.New(nil, nil))
	for _, role := range []rbac.Role{rbac.RoleManager, rbac.RoleSales, rbac.RoleSupport} {
		_, err := svc.Timeline(as(role, uuid.New()), TimelineFilters{})
		assert.ErrorIs(t, err, httpx.ErrForbidden, role)
	}
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, httpx.ErrUnauthenticated)
}

func TestTimelineRejectsBadRange(t *testing.T) {
	svc := NewService(&stubRepo{}, guard.New(nil, nil))
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Timeline(as(rbac.RoleAdmin, uuid.New()), TimelineFilters{From: now, To: now.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Export(as(rbac.RoleAdmin, uuid.New()), TimelineFilters{From: now, To: now.AddDate(0, 6, 0)})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestTimelineBoundsOpenRanges(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, guard.New(nil, nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := as(rbac.RoleAdmin, uuid.New())

	_, err := svc.Timeline(ctx, TimelineFilters{})
	require.NoError(t, err)
	assert.Equal(t, now, repo.lastFilters.To)
	assert.Equal(t, now.AddDate(0, 0, -7), repo.lastFilters.From)

	to := now.AddDate(0, -1, 0)
	_, err = svc.Export(ctx, TimelineFilters{To: to})
	require.NoError(t, err)
	assert.Equal(t, to.AddDate(0, 0, -7), repo.lastFilters.From)

	_, err = svc.Timeline(ctx, TimelineFilters{From: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Export(ctx, TimelineFilters{From: now.AddDate(0, 0, -30)})
	require.NoError(t, err)
	assert.Equal(t, now, repo.lastFilters.To)
}

func TestTimelineQueryIsScoped(t *testing.T) {
	company := uuid.New()
	scope, err := tenant.Resolve(rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleAdmin})
	require.NoError(t, err)

	query, args, err := timelineQuery(scope, TimelineFilters{Entity: "lead"}, 21, 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT a.id, a.at, a.actor_id, COALESCE(u.email, ''), a.action, a.entity, a.entity_id "+
		"FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id AND u.company_id = $1 "+
		"WHERE a.company_id = $2 AND a.entity = $3 ORDER BY a.at DESC, a.id DESC LIMIT 21 OFFSET 0", query)
	assert.Equal(t, []any{company.String(), company.String(), "lead"}, args)
}

func TestWriteCSV(t *testing.T) {
	actor := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body, err := WriteCSV([]TimelineRow{
		{At: at, ActorID: &actor, ActorEmail: "ada@acme.test", Action: "delete", Entity: "deal", EntityID: "d1"},
		{At: at, Action: "create", Entity: "company", EntityID: "c1"},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"2026-01-02T03:04:05Z", actor.String(), "ada@acme.test", "delete", "deal", "d1"}, records[1])
	assert.Equal(t, "", records[2][1])
}

func TestHandlerTimelineAndExport(t *testing.T) {
	g := guard.New(nil, nil)
	h := NewHandler(nil, NewService(&stubRepo{rows: rowsN(3)}, g), guard.Middleware{Guard: g})
	r := chi.NewRouter()
	r.Route("/api/audit", h.MountRoutes)
	company := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/audit?entity=lead&from=2026-01-01&to=2026-01-31", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(as(rbac.RoleAdmin, company)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"hasNext":false`)

	req = httptest.NewRequest(http.MethodGet, "/api/audit/export.csv", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(as(rbac.RoleAdmin, company)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodGet, "/api/audit?from=yesterday", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(as(rbac.RoleAdmin, company)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(as(rbac.RoleSales, company)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), string(rbac.PermAccessUserManagement))
}

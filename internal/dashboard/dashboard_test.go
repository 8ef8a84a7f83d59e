package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

type mockRepository struct {
	mu     sync.Mutex
	calls  int
	owners map[string]uuid.UUID
	scopes []uuid.UUID
}

func newMockRepository() *mockRepository {
	return &mockRepository{owners: map[string]uuid.UUID{}}
}

func (m *mockRepository) seen(name string, scope tenant.Scope, owner uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.owners[name] = owner
	m.scopes = append(m.scopes, scope.CompanyID())
}

func (m *mockRepository) LeadCounts(_ context.Context, scope tenant.Scope, owner uuid.UUID) ([]StatusCount, error) {
	m.seen("leads", scope, owner)
	return []StatusCount{{Status: "won", Count: 2}, {Status: "new", Count: 6}}, nil
}

func (m *mockRepository) Pipeline(_ context.Context, scope tenant.Scope, owner uuid.UUID) ([]StageTotal, error) {
	m.seen("pipeline", scope, owner)
	return []StageTotal{
		{Stage: "proposal", Count: 2, Value: 1000, Weighted: 500},
		{Stage: "closed_won", Count: 1, Value: 400, Weighted: 400},
		{Stage: "closed_lost", Count: 1, Value: 50},
	}, nil
}

func (m *mockRepository) RepLeads(_ context.Context, scope tenant.Scope) ([]RepLeads, error) {
	m.seen("repLeads", scope, uuid.Nil)
	return []RepLeads{{UserID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "Ana", Leads: 5, Won: 1}}, nil
}

func (m *mockRepository) RepDeals(_ context.Context, scope tenant.Scope) ([]RepDeals, error) {
	m.seen("repDeals", scope, uuid.Nil)
	return []RepDeals{
		{UserID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "Ana", Deals: 4, Won: 1, WonValue: 100},
		{UserID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Name: "Ben", Deals: 2, Won: 2, WonValue: 900},
	}, nil
}

func (m *mockRepository) Tasks(_ context.Context, scope tenant.Scope, owner uuid.UUID, _ time.Time) (TaskStats, error) {
	m.seen("tasks", scope, owner)
	return TaskStats{Open: 3, Overdue: 1}, nil
}

func (m *mockRepository) Customers(_ context.Context, scope tenant.Scope, owner uuid.UUID) (CustomerStats, error) {
	m.seen("customers", scope, owner)
	return CustomerStats{Total: 10, Active: 8}, nil
}

func (m *mockRepository) ActiveUsers(_ context.Context, scope tenant.Scope) (int, error) {
	m.seen("users", scope, uuid.Nil)
	return 4, nil
}

type lookupSpy struct {
	mu         sync.Mutex
	hits, miss int
}

func (l *lookupSpy) RecordCacheLookup(hit bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hit {
		l.hits++
	} else {
		l.miss++
	}
}

func setupCache(t *testing.T, recorder LookupRecorder) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, recorder), mr
}

func as(p rbac.Principal) context.Context {
	return rbac.ContextWithPrincipal(context.Background(), p)
}

func TestDashboardPerRole(t *testing.T) {
	company := uuid.New()
	tests := []struct {
		role      rbac.Role
		narrowed  []string
		team      []string
		customers bool
		reps      bool
		users     bool
	}{
		{role: rbac.RoleAdmin, team: []string{"leads", "pipeline", "tasks", "customers"}, customers: true, users: true},
		{role: rbac.RoleManager, team: []string{"leads", "pipeline", "tasks"}, reps: true},
		{role: rbac.RoleSales, narrowed: []string{"leads", "pipeline", "tasks"}},
		{role: rbac.RoleSupport, narrowed: []string{"tasks"}, team: []string{"customers"}, customers: true},
	}
	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			repo := newMockRepository()
			svc := NewService(repo, NewCache(nil, time.Minute, nil), guard.New(nil, nil))
			p := rbac.Principal{ID: uuid.New(), CompanyID: company, Role: tc.role}

			d, err := svc.Dashboard(as(p))
			require.NoError(t, err)
			assert.Equal(t, tc.role, d.Role)
			for _, name := range tc.narrowed {
				assert.Equal(t, p.ID, repo.owners[name], name)
			}
			for _, name := range tc.team {
				assert.Equal(t, uuid.Nil, repo.owners[name], name)
			}
			assert.Equal(t, tc.customers, d.Customers != nil)
			assert.Equal(t, tc.reps, len(d.Reps) > 0)
			assert.Equal(t, tc.users, d.ActiveUsers != nil)
			for _, scoped := range repo.scopes {
				assert.Equal(t, company, scoped)
			}
		})
	}
}

func TestDashboardOrdersLeadStatuses(t *testing.T) {
	svc := NewService(newMockRepository(), nil, guard.New(nil, nil))
	d, err := svc.Dashboard(as(rbac.Principal{ID: uuid.New(), CompanyID: uuid.New(), Role: rbac.RoleSales}))
	require.NoError(t, err)
	require.Len(t, d.Leads, 6)
	assert.Equal(t, StatusCount{Status: "new", Count: 6}, d.Leads[0])
	assert.Equal(t, StatusCount{Status: "won", Count: 2}, d.Leads[4])
	assert.Equal(t, 0, d.Leads[5].Count)
}

func TestDashboardRejections(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, guard.New(nil, nil))

	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, httpx.ErrUnauthenticated)

	_, err = svc.Dashboard(as(rbac.Principal{ID: uuid.New(), Role: rbac.RoleSales}))
	assert.ErrorIs(t, err, httpx.ErrConfiguration)
	assert.Zero(t, repo.calls)
}

func TestDashboardIsCachedPerUserAndInvalidated(t *testing.T) {
	spy := &lookupSpy{}
	cache, mr := setupCache(t, spy)
	repo := newMockRepository()
	svc := NewService(repo, cache, guard.New(nil, nil))
	company := uuid.New()
	p := rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleSales}

	_, err := svc.Dashboard(as(p))
	require.NoError(t, err)
	first := repo.calls
	_, err = svc.Dashboard(as(p))
	require.NoError(t, err)
	assert.Equal(t, first, repo.calls)
	assert.Equal(t, 1, spy.hits)
	assert.Equal(t, 1, spy.miss)

	for _, key := range mr.Keys() {
		assert.True(t, strings.HasPrefix(key, "crm:dash:"+company.String()+":"), key)
	}

	require.NoError(t, svc.Invalidate(context.Background(), company))
	_, err = svc.Dashboard(as(p))
	require.NoError(t, err)
	assert.Equal(t, 2*first, repo.calls)
}

func TestInvalidateIsPerCompany(t *testing.T) {
	cache, _ := setupCache(t, nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	keyA, err := cache.BuildKey(ctx, a, "sales", "u1")
	require.NoError(t, err)
	keyB, err := cache.BuildKey(ctx, b, "sales", "u1")
	require.NoError(t, err)
	assert.Contains(t, keyA, a.String())
	assert.NotEqual(t, keyA, keyB)

	require.NoError(t, cache.Bump(ctx, a))
	nextA, err := cache.BuildKey(ctx, a, "sales", "u1")
	require.NoError(t, err)
	nextB, err := cache.BuildKey(ctx, b, "sales", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, keyA, nextA)
	assert.Equal(t, keyB, nextB)
}

func TestReports(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, guard.New(nil, nil))
	manager := rbac.Principal{ID: uuid.New(), CompanyID: uuid.New(), Role: rbac.RoleManager}

	funnel, err := svc.LeadFunnel(as(manager))
	require.NoError(t, err)
	assert.Equal(t, 8, funnel.Total)
	assert.InDelta(t, 0.25, funnel.ConversionRate, 1e-9)
	assert.Equal(t, uuid.Nil, repo.owners["leads"])

	pipeline, err := svc.Pipeline(as(manager))
	require.NoError(t, err)
	assert.Equal(t, 4, pipeline.TotalDeals)
	assert.Equal(t, float64(1000), pipeline.OpenValue)
	assert.Equal(t, float64(500), pipeline.Weighted)
	assert.Equal(t, float64(400), pipeline.WonValue)
	assert.Len(t, pipeline.Stages, 6)

	reps, err := svc.Performance(as(manager))
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, "Ben", reps[0].Name)
	assert.Equal(t, 5, reps[1].Leads)
	assert.InDelta(t, 0.25, reps[1].WinRate, 1e-9)

	sales := rbac.Principal{ID: uuid.New(), CompanyID: uuid.New(), Role: rbac.RoleSales}
	_, err = svc.LeadFunnel(as(sales))
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRepLeadsQueryScopesBothTables(t *testing.T) {
	company := uuid.New()
	scope, err := tenant.Resolve(rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleManager})
	require.NoError(t, err)

	query, args, err := repLeadsQuery(scope).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "FROM leads l JOIN users u ON u.id = l.assigned_to AND u.company_id = $1 WHERE l.company_id = $2")
	assert.Equal(t, []any{company.String(), company.String()}, args)

	query, args, err = tasksQuery(scope, uuid.Nil, time.Unix(0, 0)).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "due_at < $1) FROM tasks WHERE tasks.company_id = $2")
	assert.Len(t, args, 2)
}

func TestFetchJSONCollapsesConcurrentMisses(t *testing.T) {
	cache, _ := setupCache(t, nil)
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	loader := func(context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return map[string]int{"n": 1}, nil
	}

	var wg sync.WaitGroup
	results := make([]map[string]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, cache.FetchJSON(context.Background(), "crm:dash:test", &results[i], loader))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, r := range results {
		assert.Equal(t, 1, r["n"])
	}
}

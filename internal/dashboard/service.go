package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-crm/odyssey-crm/internal/deals"
	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/leads"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

const entity = "dashboard"

// Service coordinates aggregate queries with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	guard *guard.Guard
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, g *guard.Guard) *Service {
	return &Service{repo: repo, cache: cache, guard: g, now: time.Now}
}

// Dashboard returns the dashboard of the caller's role.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var perm rbac.Permission
	if p := rbac.PrincipalFromContext(ctx); p != nil {
		perm, _ = rbac.DashboardPermission(p.Role)
	}
	if perm == "" {
		// No usable principal; let the guard reject and record it.
		_, err := s.guard.AuthorizeAll(ctx, entity)
		return nil, err
	}
	access, err := s.guard.Authorize(ctx, perm, entity)
	if err != nil {
		return nil, err
	}

	key, err := s.cache.BuildKey(ctx, access.Scope.CompanyID(), string(access.Principal.Role), access.Principal.ID.String())
	if err != nil {
		return s.build(ctx, access)
	}
	var out Dashboard
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.build(ctx, access)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate drops every cached dashboard of the company.
func (s *Service) Invalidate(ctx context.Context, companyID uuid.UUID) error {
	return s.cache.Bump(ctx, companyID)
}

func (s *Service) build(ctx context.Context, access guard.Access) (*Dashboard, error) {
	scope := access.Scope
	now := s.now()
	d := &Dashboard{Role: access.Principal.Role, GeneratedAt: now.UTC()}
	g, gctx := errgroup.WithContext(ctx)

	leadCounts := func() {
		g.Go(func() error {
			counts, err := s.repo.LeadCounts(gctx, scope, access.Owner(rbac.PermViewTeamLeads))
			d.Leads = orderStatuses(counts)
			return err
		})
	}
	pipeline := func() {
		g.Go(func() error {
			totals, err := s.repo.Pipeline(gctx, scope, access.Owner(rbac.PermViewTeamDeals))
			d.Pipeline = orderStages(totals)
			return err
		})
	}
	taskStats := func() {
		g.Go(func() error {
			stats, err := s.repo.Tasks(gctx, scope, access.Owner(rbac.PermViewTeamTasks), now)
			d.Tasks = &stats
			return err
		})
	}

	switch access.Principal.Role {
	case rbac.RoleAdmin:
		leadCounts()
		pipeline()
		taskStats()
		g.Go(func() error {
			stats, err := s.repo.Customers(gctx, scope, access.Owner(rbac.PermViewTeamCustomers))
			d.Customers = &stats
			return err
		})
		g.Go(func() error {
			n, err := s.repo.ActiveUsers(gctx, scope)
			d.ActiveUsers = &n
			return err
		})
	case rbac.RoleManager:
		leadCounts()
		pipeline()
		taskStats()
		g.Go(func() error {
			reps, err := s.repo.RepLeads(gctx, scope)
			d.Reps = reps
			return err
		})
	case rbac.RoleSales:
		leadCounts()
		pipeline()
		taskStats()
	case rbac.RoleSupport:
		taskStats()
		g.Go(func() error {
			stats, err := s.repo.Customers(gctx, scope, access.Owner(rbac.PermViewTeamCustomers))
			d.Customers = &stats
			return err
		})
	default:
		return nil, fmt.Errorf("%w: no dashboard for role", httpx.ErrForbidden)
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	return d, nil
}

func orderStatuses(counts []StatusCount) []StatusCount {
	byStatus := make(map[string]int, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	out := make([]StatusCount, 0, len(leads.Statuses()))
	for _, st := range leads.Statuses() {
		out = append(out, StatusCount{Status: string(st), Count: byStatus[string(st)]})
	}
	return out
}

func orderStages(totals []StageTotal) []StageTotal {
	byStage := make(map[string]StageTotal, len(totals))
	for _, t := range totals {
		byStage[t.Stage] = t
	}
	out := make([]StageTotal, 0, len(deals.Stages()))
	for _, st := range deals.Stages() {
		t := byStage[string(st)]
		t.Stage = string(st)
		out = append(out, t)
	}
	return out
}

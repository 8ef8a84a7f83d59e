package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-crm/odyssey-crm/internal/customers"
	"github.com/odyssey-crm/odyssey-crm/internal/deals"
	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/leads"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	"github.com/odyssey-crm/odyssey-crm/internal/tasks"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
	"github.com/odyssey-crm/odyssey-crm/internal/users"
)

const (
	entity       = "settings"
	backupEntity = "backup"
)

// Sources are the entity stores a backup reads from. The package repositories
// satisfy them.
type Sources struct {
	Users interface {
		List(ctx context.Context, scope tenant.Scope, filter users.Filter) ([]users.User, int, error)
	}
	Leads interface {
		List(ctx context.Context, scope tenant.Scope, filter leads.Filter) ([]leads.Lead, int, error)
	}
	Customers interface {
		List(ctx context.Context, scope tenant.Scope, filter customers.Filter) ([]customers.Customer, int, error)
	}
	Deals interface {
		List(ctx context.Context, scope tenant.Scope, filter deals.Filter) ([]deals.Deal, int, error)
	}
	Tasks interface {
		List(ctx context.Context, scope tenant.Scope, filter tasks.Filter) ([]tasks.Task, int, error)
	}
}

// Service reads and writes company settings and produces backups.
type Service struct {
	repo    Repository
	sources Sources
	guard   *guard.Guard
	changes shared.ChangeRecorder
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, sources Sources, g *guard.Guard, changes shared.ChangeRecorder) *Service {
	return &Service{repo: repo, sources: sources, guard: g, changes: changes, now: time.Now}
}

// Get returns the caller's company settings.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAccessSettings, entity)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, access.Scope)
}

// Update replaces the caller's company settings.
func (s *Service) Update(ctx context.Context, req UpdateSettingsRequest) (*Settings, error) {
	access, err := s.guard.AuthorizeAll(ctx, entity, rbac.PermAccessSettings, rbac.PermManageSettings)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(req.LeadSources))
	seen := make(map[string]struct{}, len(req.LeadSources))
	for _, src := range req.LeadSources {
		src = strings.TrimSpace(src)
		if _, dup := seen[src]; dup || src == "" {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	saved, err := s.repo.Save(ctx, access.Scope, Settings{
		DisplayName: strings.TrimSpace(req.DisplayName),
		Timezone:    req.Timezone,
		Currency:    req.Currency,
		LeadSources: sources,
	})
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, access.Scope.CompanyID().String())
	return saved, nil
}

// Backup exports every record of the caller's company.
func (s *Service) Backup(ctx context.Context) (*Backup, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermManageBackups, backupEntity)
	if err != nil {
		return nil, err
	}
	scope := access.Scope
	b := &Backup{Version: backupVersion, CompanyID: scope.CompanyID(), ExportedAt: s.now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		settings, err := s.repo.Get(gctx, scope)
		if err == nil {
			b.Settings = *settings
		}
		return err
	})
	g.Go(func() error {
		var err error
		b.Users, _, err = s.sources.Users.List(gctx, scope, users.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Leads, _, err = s.sources.Leads.List(gctx, scope, leads.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Customers, _, err = s.sources.Customers.List(gctx, scope, customers.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Deals, _, err = s.sources.Deals.List(gctx, scope, deals.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		b.Tasks, _, err = s.sources.Tasks.List(gctx, scope, tasks.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	s.changes.Record(ctx, scope.CompanyID(), access.Principal.ID, shared.ActionExport, backupEntity, scope.CompanyID().String())
	return b, nil
}

// BackupFilename names the download for a company.
func BackupFilename(companyID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("crm-backup-%s-%s.json", companyID, at.UTC().Format("20060102T150405Z"))
}

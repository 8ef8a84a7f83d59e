package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxRange        = 90 * 24 * time.Hour
	defaultRange    = 7 * 24 * time.Hour
	maxExportRows   = 10000
)

// Service coordinates audit reads.
type Service struct {
	repo  Repository
	guard *guard.Guard
	now   func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, g *guard.Guard) *Service {
	return &Service{repo: repo, guard: g, now: time.Now}
}

func (s *Service) scope(ctx context.Context) (tenant.Scope, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAccessUserManagement, "audit")
	if err != nil {
		return tenant.Scope{}, err
	}
	return access.Scope, nil
}

// boundRange fills a missing upper bound with now and a missing lower bound
// with the week before the upper one, then enforces the maximum span.
func boundRange(f TimelineFilters, now time.Time) (TimelineFilters, error) {
	if f.To.IsZero() {
		f.To = now
	}
	if f.From.IsZero() {
		f.From = f.To.Add(-defaultRange)
	}
	if f.From.After(f.To) {
		return f, fmt.Errorf("%w: from is after to", httpx.ErrValidation)
	}
	if f.To.Sub(f.From) > maxRange {
		return f, fmt.Errorf("%w: range exceeds 90 days", httpx.ErrValidation)
	}
	return f, nil
}

// Timeline returns one page of the tenant's audit records, newest first.
func (s *Service) Timeline(ctx context.Context, f TimelineFilters) (Result, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return Result{}, err
	}
	f, err = boundRange(f, s.now())
	if err != nil {
		return Result{}, err
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Timeline(ctx, scope, f, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching record up to a fixed cap.
func (s *Service) Export(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	f, err = boundRange(f, s.now())
	if err != nil {
		return nil, err
	}
	return s.repo.Timeline(ctx, scope, f, maxExportRows, 0)
}

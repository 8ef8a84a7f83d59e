package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

const entity = "customer"

// Service implements customer operations.
type Service struct {
	repo    Repository
	guard   *guard.Guard
	changes shared.ChangeRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, changes shared.ChangeRecorder) *Service {
	return &Service{repo: repo, guard: g, changes: changes}
}

// List returns the customers visible to the caller.
func (s *Service) List(ctx context.Context, filter Filter) ([]Customer, int, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewCustomers, entity)
	if err != nil {
		return nil, 0, err
	}
	filter.Owner = access.Owner(rbac.PermViewTeamCustomers)
	return s.repo.List(ctx, access.Scope, filter)
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewCustomers, entity)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamCustomers))
}

// Create adds a customer owned by the caller unless a team member hands it to
// another user of the company.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermCreateCustomers, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	owner, err := s.resolveOwner(ctx, access, req.OwnerID)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	created, err := s.repo.Create(ctx, access.Scope, Customer{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Address:     strings.TrimSpace(req.Address),
		Status:      status,
		Notes:       req.Notes,
		OwnerID:     &owner,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionCreate, entity, created.ID.String())
	return created, nil
}

// Update changes customer details.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest) (*Customer, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditCustomers, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	narrow := access.Owner(rbac.PermViewTeamCustomers)

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.CompanyName != nil {
		updates["company_name"] = strings.TrimSpace(*req.CompanyName)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Status != nil {
		updates["status"] = string(*req.Status)
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.OwnerID != nil {
		owner, err := s.resolveOwner(ctx, access, req.OwnerID)
		if err != nil {
			return nil, err
		}
		updates["owner_id"] = owner
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, access.Scope, id, narrow)
	}
	customer, err := s.repo.Update(ctx, access.Scope, id, narrow, updates)
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return customer, nil
}

// Delete removes a customer. Customers still referenced by deals or tasks are
// refused with ErrConflict; those records may belong to other owners.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	access, err := s.guard.Authorize(ctx, rbac.PermDeleteCustomers, entity)
	if err != nil {
		return err
	}
	narrow := access.Owner(rbac.PermViewTeamCustomers)
	if _, err := s.repo.Get(ctx, access.Scope, id, narrow); err != nil {
		return err
	}
	n, err := s.repo.Dependents(ctx, access.Scope, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: customer has %d linked deals or tasks", httpx.ErrConflict, n)
	}
	if err := s.repo.Delete(ctx, access.Scope, id, narrow); err != nil {
		return err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionDelete, entity, id.String())
	return nil
}

func (s *Service) resolveOwner(ctx context.Context, access guard.Access, requested *uuid.UUID) (uuid.UUID, error) {
	me := access.Principal.ID
	if requested == nil || *requested == me {
		return me, nil
	}
	if !access.Can(rbac.PermViewTeamCustomers) {
		return uuid.Nil, httpx.ErrForbidden
	}
	if err := s.repo.MemberExists(ctx, access.Scope, *requested); err != nil {
		return uuid.Nil, err
	}
	return *requested, nil
}

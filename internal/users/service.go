package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

const entity = "user"

// Service handles user business logic.
type Service struct {
	repo       RepositoryPort
	guard      *guard.Guard
	changes    shared.ChangeRecorder
	bcryptCost int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, g *guard.Guard, changes shared.ChangeRecorder) *Service {
	return &Service{repo: repo, guard: g, changes: changes, bcryptCost: bcrypt.DefaultCost}
}

// List returns the company's users. Without canAccessUserManagement only
// active members are listed.
func (s *Service) List(ctx context.Context, filter Filter) ([]User, int, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewTeamMembers, entity)
	if err != nil {
		return nil, 0, err
	}
	if !access.Can(rbac.PermAccessUserManagement) {
		filter.ActiveOnly = true
	}
	return s.repo.List(ctx, access.Scope, filter)
}

// Get returns one user of the company.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewTeamMembers, entity)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, access.Scope, id, !access.Can(rbac.PermAccessUserManagement))
}

// Create registers a user in the caller's company.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermCreateUsers, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, access.Scope, NewUser{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionCreate, entity, user.ID.String())
	return user, nil
}

// Update changes a user. A role change applies from the user's next request.
// Callers cannot demote or deactivate themselves.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditUsers, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	self := id == access.Principal.ID

	updates := make(map[string]any)
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		if self && *req.Role != access.Principal.Role {
			return nil, fmt.Errorf("%w: cannot change your own role", httpx.ErrValidation)
		}
		updates["role"] = string(*req.Role)
	}
	if req.IsActive != nil {
		if self && !*req.IsActive {
			return nil, fmt.Errorf("%w: cannot deactivate yourself", httpx.ErrValidation)
		}
		updates["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, access.Scope, id, false)
	}
	user, err := s.repo.Update(ctx, access.Scope, id, updates)
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return user, nil
}

// Delete removes a user other than the caller.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	access, err := s.guard.Authorize(ctx, rbac.PermDeleteUsers, entity)
	if err != nil {
		return err
	}
	if id == access.Principal.ID {
		return fmt.Errorf("%w: cannot delete yourself", httpx.ErrValidation)
	}
	if err := s.repo.Delete(ctx, access.Scope, id); err != nil {
		return err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionDelete, entity, id.String())
	return nil
}

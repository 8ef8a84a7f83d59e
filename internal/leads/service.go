package leads

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

const entity = "lead"

// Service implements lead pipeline operations.
type Service struct {
	repo    Repository
	guard   *guard.Guard
	changes shared.ChangeRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, changes shared.ChangeRecorder) *Service {
	return &Service{repo: repo, guard: g, changes: changes}
}

// List returns the leads visible to the caller.
func (s *Service) List(ctx context.Context, filter Filter) ([]Lead, int, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewLeads, entity)
	if err != nil {
		return nil, 0, err
	}
	filter.Owner = access.Owner(rbac.PermViewTeamLeads)
	return s.repo.List(ctx, access.Scope, filter)
}

// Board groups the visible leads by status. Each column carries one page of
// leads (page applies per column) and the totals of the whole column.
func (s *Service) Board(ctx context.Context, page shared.Pagination) (*Board, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewLeads, entity)
	if err != nil {
		return nil, err
	}
	owner := access.Owner(rbac.PermViewTeamLeads)
	totals, err := s.repo.StatusTotals(ctx, access.Scope, owner)
	if err != nil {
		return nil, err
	}
	board := &Board{Columns: make([]BoardColumn, 0, len(Statuses()))}
	for _, st := range Statuses() {
		col := BoardColumn{Status: st, Leads: []Lead{}, Total: totals[st].Count, Value: totals[st].Value}
		if col.Total > page.Offset {
			leads, _, err := s.repo.List(ctx, access.Scope, Filter{Owner: owner, Status: st, Limit: page.Limit, Offset: page.Offset})
			if err != nil {
				return nil, err
			}
			if leads != nil {
				col.Leads = leads
			}
		}
		col.HasMore = page.Offset+len(col.Leads) < col.Total
		board.Columns = append(board.Columns, col)
	}
	return board, nil
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewLeads, entity)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamLeads))
}

// Create adds a lead. Callers without canAssignLeads always own what they create.
func (s *Service) Create(ctx context.Context, req CreateLeadRequest) (*Lead, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermCreateLeads, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}

	me := access.Principal.ID
	assignee := &me
	if req.AssignedTo != nil && *req.AssignedTo != me {
		if !access.Can(rbac.PermAssignLeads) {
			return nil, httpx.ErrForbidden
		}
		if err := s.checkAssignee(ctx, access, *req.AssignedTo); err != nil {
			return nil, err
		}
		assignee = req.AssignedTo
	} else if req.AssignedTo == nil && access.Can(rbac.PermAssignLeads) {
		// Team leads may drop new leads into the unassigned pool.
		assignee = nil
	}

	status := req.Status
	if status == "" {
		status = StatusNew
	}
	lead := Lead{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Source:      strings.TrimSpace(req.Source),
		Status:      status,
		Value:       req.Value,
		Notes:       req.Notes,
		AssignedTo:  assignee,
		CreatedBy:   &me,
	}
	created, err := s.repo.Create(ctx, access.Scope, lead)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), me, shared.ActionCreate, entity, created.ID.String())
	return created, nil
}

// Update changes lead details.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateLeadRequest) (*Lead, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditLeads, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	owner := access.Owner(rbac.PermViewTeamLeads)

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
	if req.Source != nil {
		updates["source"] = strings.TrimSpace(*req.Source)
	}
	if req.Value != nil {
		updates["value"] = *req.Value
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, access.Scope, id, owner)
	}

	lead, err := s.repo.Update(ctx, access.Scope, id, owner, updates)
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return lead, nil
}

// MoveStatus moves a lead to another kanban column.
func (s *Service) MoveStatus(ctx context.Context, id uuid.UUID, req MoveStatusRequest) (*Lead, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditLeads, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	owner := access.Owner(rbac.PermViewTeamLeads)
	current, err := s.repo.Get(ctx, access.Scope, id, owner)
	if err != nil {
		return nil, err
	}
	if current.Status == req.Status {
		return current, nil
	}
	if !CanMove(current.Status, req.Status) {
		return nil, fmt.Errorf("%w: a %s lead can only be reopened to new", httpx.ErrValidation, current.Status)
	}
	lead, err := s.repo.Update(ctx, access.Scope, id, owner, map[string]any{"status": string(req.Status)})
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return lead, nil
}

// Delete removes a lead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	access, err := s.guard.Authorize(ctx, rbac.PermDeleteLeads, entity)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamLeads)); err != nil {
		return err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionDelete, entity, id.String())
	return nil
}

// Assign hands a lead to an active member of the same company.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, req AssignRequest) (*Lead, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAssignLeads, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, access, req.UserID); err != nil {
		return nil, err
	}
	lead, err := s.repo.Update(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamLeads), map[string]any{"assigned_to": req.UserID})
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionAssign, entity, id.String())
	return lead, nil
}

// Unassign returns a lead to the unassigned pool.
func (s *Service) Unassign(ctx context.Context, id uuid.UUID) (*Lead, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAssignLeads, entity)
	if err != nil {
		return nil, err
	}
	lead, err := s.repo.Update(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamLeads), map[string]any{"assigned_to": nil})
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionAssign, entity, id.String())
	return lead, nil
}

// Convert turns a lead into a customer and closes the lead as won.
func (s *Service) Convert(ctx context.Context, id uuid.UUID) (*Conversion, error) {
	access, err := s.guard.AuthorizeAll(ctx, entity, rbac.PermEditLeads, rbac.PermCreateCustomers)
	if err != nil {
		return nil, err
	}
	owner := access.Owner(rbac.PermViewTeamLeads)

	var result Conversion
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		lead, err := repo.Get(ctx, access.Scope, id, owner)
		if err != nil {
			return err
		}
		if lead.CustomerID != nil {
			return fmt.Errorf("%w: lead already converted", httpx.ErrDuplicate)
		}
		if lead.Status == StatusLost {
			return fmt.Errorf("%w: a lost lead cannot be converted", httpx.ErrValidation)
		}
		customerOwner := lead.AssignedTo
		if customerOwner == nil {
			me := access.Principal.ID
			customerOwner = &me
		}
		customerID, err := repo.CreateCustomer(ctx, access.Scope, NewCustomer{
			Name:        lead.Name,
			Email:       lead.Email,
			Phone:       lead.Phone,
			CompanyName: lead.CompanyName,
			Notes:       lead.Notes,
			OwnerID:     customerOwner,
		})
		if err != nil {
			return err
		}
		updated, err := repo.Update(ctx, access.Scope, id, owner, map[string]any{
			"status":      string(StatusWon),
			"customer_id": customerID,
		})
		if err != nil {
			return err
		}
		result = Conversion{Lead: *updated, CustomerID: customerID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionConvert, entity, id.String())
	return &result, nil
}

func (s *Service) checkAssignee(ctx context.Context, access guard.Access, userID uuid.UUID) error {
	role, err := s.repo.MemberRole(ctx, access.Scope, userID)
	if err != nil {
		return err
	}
	if !rbac.HasPermission(role, rbac.PermViewLeads) {
		return fmt.Errorf("%w: assignee cannot work leads", httpx.ErrValidation)
	}
	return nil
}

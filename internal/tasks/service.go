package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

const entity = "task"

// Service implements task operations.
type Service struct {
	repo    Repository
	guard   *guard.Guard
	changes shared.ChangeRecorder
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, changes shared.ChangeRecorder) *Service {
	return &Service{repo: repo, guard: g, changes: changes, now: time.Now}
}

// List returns the tasks visible to the caller.
func (s *Service) List(ctx context.Context, filter Filter) ([]Task, int, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewTasks, entity)
	if err != nil {
		return nil, 0, err
	}
	filter.Owner = access.Owner(rbac.PermViewTeamTasks)
	return s.repo.List(ctx, access.Scope, filter)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewTasks, entity)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamTasks))
}

// Create adds a task. Without team visibility the task is assigned to the caller.
func (s *Service) Create(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermCreateTasks, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	assignee, err := s.resolveAssignee(ctx, access, req.AssignedTo)
	if err != nil {
		return nil, err
	}
	var relatedID *uuid.UUID
	if req.RelatedType != RelatedNone {
		if err := s.repo.RelatedExists(ctx, access.Scope, req.RelatedType, *req.RelatedID); err != nil {
			return nil, err
		}
		relatedID = req.RelatedID
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	me := access.Principal.ID
	created, err := s.repo.Create(ctx, access.Scope, Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueAt:       req.DueAt,
		Priority:    priority,
		Status:      StatusTodo,
		AssignedTo:  &assignee,
		RelatedType: req.RelatedType,
		RelatedID:   relatedID,
		CreatedBy:   &me,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), me, shared.ActionCreate, entity, created.ID.String())
	return created, nil
}

// Update changes a task. Moving to done stamps completed_at; moving away clears it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateTaskRequest) (*Task, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditTasks, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	owner := access.Owner(rbac.PermViewTeamTasks)

	updates := make(map[string]any)
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.DueAt != nil {
		updates["due_at"] = *req.DueAt
	}
	if req.Priority != nil {
		updates["priority"] = string(*req.Priority)
	}
	if req.Status != nil {
		updates["status"] = string(*req.Status)
		if *req.Status == StatusDone {
			updates["completed_at"] = s.now()
		} else {
			updates["completed_at"] = nil
		}
	}
	if req.AssignedTo != nil {
		assignee, err := s.resolveAssignee(ctx, access, req.AssignedTo)
		if err != nil {
			return nil, err
		}
		updates["assigned_to"] = assignee
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, access.Scope, id, owner)
	}
	task, err := s.repo.Update(ctx, access.Scope, id, owner, updates)
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return task, nil
}

// Complete marks a task done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Task, error) {
	done := StatusDone
	return s.Update(ctx, id, UpdateTaskRequest{Status: &done})
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	access, err := s.guard.Authorize(ctx, rbac.PermDeleteTasks, entity)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamTasks)); err != nil {
		return err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionDelete, entity, id.String())
	return nil
}

func (s *Service) resolveAssignee(ctx context.Context, access guard.Access, requested *uuid.UUID) (uuid.UUID, error) {
	me := access.Principal.ID
	if requested == nil || *requested == me {
		return me, nil
	}
	if !access.Can(rbac.PermViewTeamTasks) {
		return uuid.Nil, httpx.ErrForbidden
	}
	if err := s.repo.MemberExists(ctx, access.Scope, *requested); err != nil {
		return uuid.Nil, err
	}
	return *requested, nil
}

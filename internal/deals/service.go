package deals

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

const (
	entity          = "deal"
	defaultCurrency = "USD"
)

// Service implements deal pipeline operations.
type Service struct {
	repo    Repository
	guard   *guard.Guard
	changes shared.ChangeRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, changes shared.ChangeRecorder) *Service {
	return &Service{repo: repo, guard: g, changes: changes}
}

// List returns the deals visible to the caller.
func (s *Service) List(ctx context.Context, filter Filter) ([]Deal, int, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewDeals, entity)
	if err != nil {
		return nil, 0, err
	}
	filter.Owner = access.Owner(rbac.PermViewTeamDeals)
	return s.repo.List(ctx, access.Scope, filter)
}

// Get returns one deal.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Deal, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermViewDeals, entity)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamDeals))
}

// Create opens a deal owned by the caller against a customer the caller can see.
func (s *Service) Create(ctx context.Context, req CreateDealRequest) (*Deal, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermCreateDeals, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	if err := s.repo.CustomerVisible(ctx, access.Scope, req.CustomerID, access.Owner(rbac.PermViewTeamCustomers)); err != nil {
		return nil, err
	}
	expected, err := parseDate(req.ExpectedClose)
	if err != nil {
		return nil, err
	}

	stage := req.Stage
	if stage == "" {
		stage = StageProspecting
	}
	probability := stage.DefaultProbability()
	if req.Probability != nil {
		probability = *req.Probability
	}
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	me := access.Principal.ID
	created, err := s.repo.Create(ctx, access.Scope, Deal{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(req.Title),
		CustomerID:    req.CustomerID,
		Value:         req.Value,
		Currency:      currency,
		Stage:         stage,
		Probability:   probability,
		ExpectedClose: expected,
		OwnerID:       &me,
	})
	if err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), me, shared.ActionCreate, entity, created.ID.String())
	return created, nil
}

// Update changes deal details. Stage moves go through MoveStage.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateDealRequest) (*Deal, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditDeals, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	owner := access.Owner(rbac.PermViewTeamDeals)

	updates := make(map[string]any)
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.CustomerID != nil {
		if err := s.repo.CustomerVisible(ctx, access.Scope, *req.CustomerID, access.Owner(rbac.PermViewTeamCustomers)); err != nil {
			return nil, err
		}
		updates["customer_id"] = *req.CustomerID
	}
	if req.Value != nil {
		updates["value"] = *req.Value
	}
	if req.Currency != nil {
		updates["currency"] = *req.Currency
	}
	if req.Probability != nil {
		updates["probability"] = *req.Probability
	}
	if req.ExpectedClose != nil {
		expected, err := parseDate(*req.ExpectedClose)
		if err != nil {
			return nil, err
		}
		updates["expected_close"] = expected
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, access.Scope, id, owner)
	}
	deal, err := s.repo.Update(ctx, access.Scope, id, owner, updates)
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return deal, nil
}

// MoveStage moves a deal along the pipeline and resets its probability to the
// stage default.
func (s *Service) MoveStage(ctx context.Context, id uuid.UUID, req MoveStageRequest) (*Deal, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermEditDeals, entity)
	if err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	deal, err := s.repo.Update(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamDeals), map[string]any{
		"stage":       string(req.Stage),
		"probability": req.Stage.DefaultProbability(),
	})
	if err != nil {
		return nil, err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionUpdate, entity, id.String())
	return deal, nil
}

// Delete removes a deal.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	access, err := s.guard.Authorize(ctx, rbac.PermDeleteDeals, entity)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, access.Scope, id, access.Owner(rbac.PermViewTeamDeals)); err != nil {
		return err
	}
	s.changes.Record(ctx, access.Scope.CompanyID(), access.Principal.ID, shared.ActionDelete, entity, id.String())
	return nil
}

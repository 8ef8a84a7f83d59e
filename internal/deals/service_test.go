package deals

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

type customerRow struct {
	company uuid.UUID
	owner   uuid.UUID
}

type mockRepository struct {
	deals     map[uuid.UUID]Deal
	customers map[uuid.UUID]customerRow
}

func newMockRepository() *mockRepository {
	return &mockRepository{deals: map[uuid.UUID]Deal{}, customers: map[uuid.UUID]customerRow{}}
}

func (m *mockRepository) visible(scope tenant.Scope, d Deal, owner uuid.UUID) bool {
	if d.CompanyID != scope.CompanyID() {
		return false
	}
	return owner == uuid.Nil || (d.OwnerID != nil && *d.OwnerID == owner)
}

func (m *mockRepository) List(_ context.Context, scope tenant.Scope, f Filter) ([]Deal, int, error) {
	var out []Deal
	for _, d := range m.deals {
		if m.visible(scope, d, f.Owner) {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(_ context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Deal, error) {
	d, ok := m.deals[id]
	if !ok || !m.visible(scope, d, owner) {
		return nil, httpx.ErrNotFound
	}
	return &d, nil
}

func (m *mockRepository) Create(_ context.Context, scope tenant.Scope, d Deal) (*Deal, error) {
	d.CompanyID = scope.CompanyID()
	m.deals[d.ID] = d
	return &d, nil
}

func (m *mockRepository) Update(_ context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Deal, error) {
	d, ok := m.deals[id]
	if !ok || !m.visible(scope, d, owner) {
		return nil, httpx.ErrNotFound
	}
	if v, ok := updates["stage"]; ok {
		d.Stage = Stage(v.(string))
	}
	if v, ok := updates["probability"]; ok {
		d.Probability = v.(int)
	}
	if v, ok := updates["customer_id"]; ok {
		d.CustomerID = v.(uuid.UUID)
	}
	m.deals[id] = d
	return &d, nil
}

func (m *mockRepository) Delete(_ context.Context, scope tenant.Scope, id, owner uuid.UUID) error {
	d, ok := m.deals[id]
	if !ok || !m.visible(scope, d, owner) {
		return httpx.ErrNotFound
	}
	delete(m.deals, id)
	return nil
}

func (m *mockRepository) CustomerVisible(_ context.Context, scope tenant.Scope, customerID, owner uuid.UUID) error {
	c, ok := m.customers[customerID]
	if !ok || c.company != scope.CompanyID() || (owner != uuid.Nil && c.owner != owner) {
		return httpx.ErrNotFound
	}
	return nil
}

func as(p rbac.Principal) context.Context {
	return rbac.ContextWithPrincipal(context.Background(), p)
}

func TestCreateDealRequiresVisibleCustomer(t *testing.T) {
	companyA, companyB := uuid.New(), uuid.New()
	rep := rbac.Principal{ID: uuid.New(), CompanyID: companyA, Role: rbac.RoleSales}
	colleague := rbac.Principal{ID: uuid.New(), CompanyID: companyA, Role: rbac.RoleSales}
	manager := rbac.Principal{ID: uuid.New(), CompanyID: companyA, Role: rbac.RoleManager}

	repo := newMockRepository()
	own, theirs, foreign := uuid.New(), uuid.New(), uuid.New()
	repo.customers[own] = customerRow{company: companyA, owner: rep.ID}
	repo.customers[theirs] = customerRow{company: companyA, owner: colleague.ID}
	repo.customers[foreign] = customerRow{company: companyB, owner: uuid.New()}
	svc := NewService(repo, guard.New(nil, nil), shared.ChangeRecorder{})

	deal, err := svc.Create(as(rep), CreateDealRequest{Title: "Renewal", CustomerID: own, Value: 1200})
	require.NoError(t, err)
	assert.Equal(t, StageProspecting, deal.Stage)
	assert.Equal(t, 10, deal.Probability)
	assert.Equal(t, "USD", deal.Currency)
	assert.Equal(t, rep.ID, *deal.OwnerID)

	_, err = svc.Create(as(rep), CreateDealRequest{Title: "Poach", CustomerID: theirs})
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.Create(as(manager), CreateDealRequest{Title: "Team", CustomerID: theirs})
	assert.NoError(t, err)

	_, err = svc.Create(as(manager), CreateDealRequest{Title: "Leak", CustomerID: foreign})
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.Create(as(rep), CreateDealRequest{Title: "Bad date", CustomerID: own, ExpectedClose: "31/12/2025"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestMoveStage(t *testing.T) {
	company := uuid.New()
	rep := rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleSales}
	other := rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleSales}
	support := rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleSupport}
	repo := newMockRepository()
	svc := NewService(repo, guard.New(nil, nil), shared.ChangeRecorder{})

	owner := rep.ID
	d := Deal{ID: uuid.New(), CompanyID: company, Title: "Big", Stage: StageProposal, OwnerID: &owner}
	repo.deals[d.ID] = d

	moved, err := svc.MoveStage(as(rep), d.ID, MoveStageRequest{Stage: StageClosedWon})
	require.NoError(t, err)
	assert.Equal(t, StageClosedWon, moved.Stage)
	assert.Equal(t, 100, moved.Probability)

	_, err = svc.MoveStage(as(other), d.ID, MoveStageRequest{Stage: StageClosedLost})
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.MoveStage(as(support), d.ID, MoveStageRequest{Stage: StageClosedLost})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.MoveStage(as(rep), d.ID, MoveStageRequest{Stage: "archived"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCustomerQueryNarrowsByOwner(t *testing.T) {
	company, owner, customer := uuid.New(), uuid.New(), uuid.New()
	scope, err := tenant.Resolve(rbac.Principal{ID: owner, CompanyID: company, Role: rbac.RoleSales})
	require.NoError(t, err)

	query, args, err := customerQuery(scope, customer, owner).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM customers WHERE customers.company_id = $1 AND id = $2 AND owner_id = $3", query)
	assert.Equal(t, []any{company.String(), customer.String(), owner.String()}, args)
}

func TestCreateDealBlankTitleIsInvalid(t *testing.T) {
	company := uuid.New()
	rep := rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleSales}
	repo := newMockRepository()
	own := uuid.New()
	repo.customers[own] = customerRow{company: company, owner: rep.ID}
	svc := NewService(repo, guard.New(nil, nil), shared.ChangeRecorder{})

	_, err := svc.Create(as(rep), CreateDealRequest{Title: "   ", CustomerID: own})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

package leads

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

func testScope(t *testing.T) (tenant.Scope, uuid.UUID) {
	t.Helper()
	company := uuid.New()
	scope, err := tenant.Resolve(rbac.Principal{ID: uuid.New(), CompanyID: company, Role: rbac.RoleManager})
	require.NoError(t, err)
	return scope, company
}

func TestListQueryAppliesScopeAndOwner(t *testing.T) {
	scope, company := testScope(t)
	owner := uuid.New()
	query, args, err := listQuery(scope, Filter{Owner: owner, Status: StatusNew, Limit: 10}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "FROM leads WHERE leads.company_id = $1 AND assigned_to = $2 AND status = $3")
	assert.Contains(t, query, "ORDER BY created_at DESC, id LIMIT 10")
	assert.Equal(t, []any{company.String(), owner.String(), "new"}, args)
}

func TestCountQueryUnassignedPool(t *testing.T) {
	scope, _ := testScope(t)
	query, _, err := countQuery(scope, Filter{Unassigned: true, Search: "acme"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM leads WHERE leads.company_id = $1 AND assigned_to IS NULL AND (name ILIKE $2 OR email ILIKE $3 OR company_name ILIKE $4)", query)
}

func TestByIDWithOwner(t *testing.T) {
	id, owner := uuid.New(), uuid.New()
	query, _, err := byID(id, owner).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "assigned_to = ? AND id = ?", query)

	query, _, err = byID(id, uuid.Nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "id = ?", query)
}

func TestStatusTotalsQueryGroupsWithinScope(t *testing.T) {
	scope, company := testScope(t)
	owner := uuid.New()
	query, args, err := statusTotalsQuery(scope, owner).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*), COALESCE(SUM(value), 0)::float8 FROM leads WHERE leads.company_id = $1 AND assigned_to = $2 GROUP BY status", query)
	assert.Equal(t, []any{company.String(), owner.String()}, args)
}

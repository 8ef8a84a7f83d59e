package guard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

type countingRecorder struct {
	calls map[string]int
}

func (c *countingRecorder) RecordDecision(outcome, reason string) {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[outcome+"/"+reason]++
}

func principal(role rbac.Role) *rbac.Principal {
	return &rbac.Principal{ID: uuid.New(), CompanyID: uuid.New(), Role: role, Email: "user@example.com"}
}

func TestCheckNoPrincipalIsUnauthenticated(t *testing.T) {
	d := Check(nil, rbac.PermViewLeads)
	assert.Equal(t, Unauthenticated, d.Outcome)
	assert.ErrorIs(t, d.Err, httpx.ErrUnauthenticated)
	assert.False(t, d.Admitted())
}

func TestCheckZeroRoleIsUnauthenticated(t *testing.T) {
	d := Check(&rbac.Principal{ID: uuid.New(), CompanyID: uuid.New()}, rbac.PermViewLeads)
	assert.Equal(t, Unauthenticated, d.Outcome)
}

func TestCheckMissingPermissionIsForbidden(t *testing.T) {
	d := Check(principal(rbac.RoleSales), rbac.PermManageBackups)
	assert.Equal(t, Forbidden, d.Outcome)
	assert.ErrorIs(t, d.Err, httpx.ErrForbidden)
}

func TestCheckRequiresEveryPermission(t *testing.T) {
	d := Check(principal(rbac.RoleSupport), rbac.PermViewCustomers, rbac.PermEditCustomers)
	assert.Equal(t, Forbidden, d.Outcome)
}

func TestCheckAdmitsWithScope(t *testing.T) {
	p := principal(rbac.RoleManager)
	d := Check(p, rbac.PermViewTeamLeads)
	require.True(t, d.Admitted())
	assert.Equal(t, p.CompanyID, d.Access.Scope.CompanyID())
	assert.Equal(t, *p, d.Access.Principal)
}

func TestCheckMissingCompanyIsConfigurationError(t *testing.T) {
	p := principal(rbac.RoleAdmin)
	p.CompanyID = uuid.Nil
	d := Check(p, rbac.PermViewLeads)
	assert.Equal(t, Misconfigured, d.Outcome)
	assert.ErrorIs(t, d.Err, httpx.ErrConfiguration)
}

func TestCheckForbiddenBeforeConfiguration(t *testing.T) {
	p := principal(rbac.RoleSupport)
	p.CompanyID = uuid.Nil
	d := Check(p, rbac.PermViewLeads)
	assert.Equal(t, Forbidden, d.Outcome)
}

func TestCheckIsIdempotent(t *testing.T) {
	p := principal(rbac.RoleSales)
	first := Check(p, rbac.PermViewLeads)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Check(p, rbac.PermViewLeads))
	}
}

func TestOwnerNarrowing(t *testing.T) {
	sales := Check(principal(rbac.RoleSales), rbac.PermViewLeads)
	require.True(t, sales.Admitted())
	assert.Equal(t, sales.Access.Principal.ID, sales.Access.Owner(rbac.PermViewTeamLeads))

	manager := Check(principal(rbac.RoleManager), rbac.PermViewLeads)
	require.True(t, manager.Admitted())
	assert.Equal(t, uuid.Nil, manager.Access.Owner(rbac.PermViewTeamLeads))
}

func TestAuthorizeReadsPrincipalFromContext(t *testing.T) {
	rec := &countingRecorder{}
	g := New(nil, rec)

	_, err := g.Authorize(context.Background(), rbac.PermViewLeads, "lead")
	assert.ErrorIs(t, err, httpx.ErrUnauthenticated)

	ctx := rbac.ContextWithPrincipal(context.Background(), *principal(rbac.RoleSales))
	access, err := g.Authorize(ctx, rbac.PermViewLeads, "lead")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSales, access.Principal.Role)

	_, err = g.Authorize(ctx, rbac.PermAssignLeads, "lead")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	assert.Equal(t, 1, rec.calls["rejected/unauthenticated"])
	assert.Equal(t, 1, rec.calls["rejected/forbidden"])
	assert.Equal(t, 1, rec.calls["admitted/ok"])
}

func TestAuthorizeAllWithoutPermissionsNeedsAuthentication(t *testing.T) {
	g := New(nil, nil)
	_, err := g.AuthorizeAll(context.Background(), "dashboard")
	assert.ErrorIs(t, err, httpx.ErrUnauthenticated)

	ctx := rbac.ContextWithPrincipal(context.Background(), *principal(rbac.RoleSupport))
	_, err = g.AuthorizeAll(ctx, "dashboard")
	assert.NoError(t, err)
}

func TestDenialLogCarriesMetadataOnly(t *testing.T) {
	var buf bytes.Buffer
	g := New(slog.New(slog.NewTextHandler(&buf, nil)), nil)
	p := principal(rbac.RoleSupport)
	ctx := rbac.ContextWithPrincipal(context.Background(), *p)

	_, err := g.Authorize(ctx, rbac.PermDeleteLeads, "lead")
	require.True(t, errors.Is(err, httpx.ErrForbidden))

	out := buf.String()
	assert.Contains(t, out, "access denied")
	assert.Contains(t, out, "role=support")
	assert.Contains(t, out, "entity=lead")
	assert.NotContains(t, out, p.Email)
}

// Package guard decides whether the current principal may perform an action
// and, when it may, hands back the tenant scope to perform it in.
package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

// Outcome is the terminal state of an access decision.
type Outcome string

const (
	Admitted        Outcome = "admitted"
	Unauthenticated Outcome = "unauthenticated"
	Forbidden       Outcome = "forbidden"
	Misconfigured   Outcome = "configuration"
)

// Decision is the result of Check.
type Decision struct {
	Outcome Outcome
	Access  Access
	Err     error
}

// Admitted reports whether the request may proceed.
func (d Decision) Admitted() bool { return d.Outcome == Admitted }

// Access is what an admitted request carries into the data layer.
type Access struct {
	Principal rbac.Principal
	Scope     tenant.Scope
}

// Can reports whether the admitted principal also holds perm.
func (a Access) Can(perm rbac.Permission) bool {
	return rbac.HasPermission(a.Principal.Role, perm)
}

// Owner returns the owner every record must match, or uuid.Nil when the
// principal holds the team visibility permission and sees the whole tenant.
func (a Access) Owner(team rbac.Permission) uuid.UUID {
	if a.Can(team) {
		return uuid.Nil
	}
	return a.Principal.ID
}

// Check runs the access state machine for p against every perm. It performs
// no I/O and returns the same decision for the same input.
func Check(p *rbac.Principal, perms ...rbac.Permission) Decision {
	if p == nil || !p.Role.Valid() {
		return Decision{Outcome: Unauthenticated, Err: httpx.ErrUnauthenticated}
	}
	for _, perm := range perms {
		if !rbac.HasPermission(p.Role, perm) {
			return Decision{Outcome: Forbidden, Err: httpx.ErrForbidden}
		}
	}
	scope, err := tenant.Resolve(*p)
	if err != nil {
		return Decision{Outcome: Misconfigured, Err: err}
	}
	return Decision{Outcome: Admitted, Access: Access{Principal: *p, Scope: scope}}
}

// Recorder receives one observation per decision.
type Recorder interface {
	RecordDecision(outcome, reason string)
}

// Guard wraps Check with logging and metrics for use by services and middleware.
type Guard struct {
	logger   *slog.Logger
	recorder Recorder
}

// New constructs a Guard. Both arguments may be nil.
func New(logger *slog.Logger, recorder Recorder) *Guard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Guard{logger: logger, recorder: recorder}
}

// Authorize checks the principal stored in ctx for perm on entity.
func (g *Guard) Authorize(ctx context.Context, perm rbac.Permission, entity string) (Access, error) {
	return g.AuthorizeAll(ctx, entity, perm)
}

// AuthorizeAll checks the principal stored in ctx for every perm on entity.
// With no perms only authentication and tenant resolution are checked.
func (g *Guard) AuthorizeAll(ctx context.Context, entity string, perms ...rbac.Permission) (Access, error) {
	p := rbac.PrincipalFromContext(ctx)
	d := Check(p, perms...)
	g.observe(ctx, d, p, entity, perms)
	if !d.Admitted() {
		return Access{}, d.Err
	}
	return d.Access, nil
}

func (g *Guard) observe(ctx context.Context, d Decision, p *rbac.Principal, entity string, perms []rbac.Permission) {
	if g.recorder != nil {
		if d.Admitted() {
			g.recorder.RecordDecision(string(Admitted), "ok")
		} else {
			g.recorder.RecordDecision("rejected", string(d.Outcome))
		}
	}
	if d.Admitted() {
		return
	}

	attrs := []any{
		slog.String("outcome", string(d.Outcome)),
		slog.String("entity", entity),
		slog.Any("permissions", perms),
	}
	if p != nil {
		attrs = append(attrs, slog.String("role", string(p.Role)), slog.String("user_id", p.ID.String()))
	}
	switch {
	case errors.Is(d.Err, httpx.ErrConfiguration):
		g.logger.ErrorContext(ctx, "access rejected: principal has no company", attrs...)
	case d.Outcome == Forbidden:
		g.logger.WarnContext(ctx, "access denied", attrs...)
	default:
		g.logger.InfoContext(ctx, "access rejected: not authenticated", attrs...)
	}
}

type accessKey struct{}

// ContextWithAccess annotates ctx with an admitted Access.
func ContextWithAccess(ctx context.Context, a Access) context.Context {
	return context.WithValue(ctx, accessKey{}, a)
}

// AccessFromContext returns the Access stored by the middleware, if any.
func AccessFromContext(ctx context.Context) (Access, bool) {
	a, ok := ctx.Value(accessKey{}).(Access)
	return a, ok
}

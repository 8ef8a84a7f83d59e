package rbac

import "context"

type principalKey struct{}

// ContextWithPrincipal stores the authenticated principal in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, &p)
}

// PrincipalFromContext returns the principal attached to ctx, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(principalKey{}).(*Principal)
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

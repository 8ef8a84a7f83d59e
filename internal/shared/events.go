package shared

import (
	"context"

	"github.com/google/uuid"
)

// ChangeNotifier is told when a tenant's business data changed so derived
// views (dashboards, reports) can be refreshed.
type ChangeNotifier interface {
	TenantChanged(ctx context.Context, companyID uuid.UUID) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// TenantChanged implements ChangeNotifier.
func (NopNotifier) TenantChanged(context.Context, uuid.UUID) error { return nil }

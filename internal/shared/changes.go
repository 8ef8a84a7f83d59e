package shared

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ChangeRecorder writes the audit entry for a mutation and tells derived
// views the tenant changed. Failures are logged; the mutation has already
// been committed by the time it runs.
type ChangeRecorder struct {
	Audit    AuditSink
	Notifier ChangeNotifier
	Logger   *slog.Logger
}

// Record stores one audit entry and signals the change.
func (c ChangeRecorder) Record(ctx context.Context, companyID, actorID uuid.UUID, action, entity, entityID string) {
	if c.Audit != nil {
		err := c.Audit.Record(ctx, AuditLog{
			CompanyID: companyID,
			ActorID:   actorID,
			Action:    action,
			Entity:    entity,
			EntityID:  entityID,
		})
		if err != nil && c.Logger != nil {
			c.Logger.WarnContext(ctx, "audit record failed",
				slog.String("entity", entity), slog.String("action", action), slog.Any("error", err))
		}
	}
	if c.Notifier != nil {
		if err := c.Notifier.TenantChanged(ctx, companyID); err != nil && c.Logger != nil {
			c.Logger.WarnContext(ctx, "change notification failed", slog.Any("error", err))
		}
	}
}

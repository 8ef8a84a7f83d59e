package shared

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionAssign  = "assign"
	ActionConvert = "convert"
	ActionExport  = "export"
	ActionLogin   = "login"
)

// AuditLog represents a record stored in audit_logs. Records carry identifiers
// only, never field values.
type AuditLog struct {
	CompanyID uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Entity    string
	EntityID  string
}

// AuditSink is implemented by AuditLogger and by test doubles.
type AuditSink interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.CompanyID == uuid.Nil || log.Action == "" || log.Entity == "" {
		return errors.New("audit log requires company/action/entity")
	}
	var actor *uuid.UUID
	if log.ActorID != uuid.Nil {
		actor = &log.ActorID
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO audit_logs (company_id, actor_id, action, entity, entity_id) VALUES ($1, $2, $3, $4, $5)`,
		log.CompanyID, actor, log.Action, log.Entity, log.EntityID)
	return err
}

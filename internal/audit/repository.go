package audit

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

// Repository reads audit records.
type Repository interface {
	Timeline(ctx context.Context, scope tenant.Scope, f TimelineFilters, limit, offset int) ([]TimelineRow, error)
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool}
}

func timelineQuery(scope tenant.Scope, f TimelineFilters, limit, offset int) (string, []any, error) {
	b := scope.Select("audit_logs a", "a.id", "a.at", "a.actor_id", "COALESCE(u.email, '')", "a.action", "a.entity", "a.entity_id")
	b = scope.LeftJoin(b, "users u", "u.id = a.actor_id")
	if !f.From.IsZero() {
		b = b.Where(sq.GtOrEq{"a.at": f.From})
	}
	if !f.To.IsZero() {
		b = b.Where(sq.Lt{"a.at": f.To})
	}
	if f.ActorID != uuid.Nil {
		b = b.Where(sq.Eq{"a.actor_id": f.ActorID.String()})
	}
	if f.Entity != "" {
		b = b.Where(sq.Eq{"a.entity": f.Entity})
	}
	if f.Action != "" {
		b = b.Where(sq.Eq{"a.action": f.Action})
	}
	b = b.OrderBy("a.at DESC", "a.id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit)).Offset(uint64(offset))
	}
	return b.ToSql()
}

// Timeline implements Repository. A non-positive limit returns every match.
func (r *pgRepository) Timeline(ctx context.Context, scope tenant.Scope, f TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	query, args, err := timelineQuery(scope, f, limit, offset)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.ActorEmail, &row.Action, &row.Entity, &row.EntityID); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

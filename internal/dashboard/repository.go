package dashboard

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

// Repository exposes the aggregates dashboards and reports are built from. A
// non-nil owner narrows the rows to that user.
type Repository interface {
	LeadCounts(ctx context.Context, scope tenant.Scope, owner uuid.UUID) ([]StatusCount, error)
	Pipeline(ctx context.Context, scope tenant.Scope, owner uuid.UUID) ([]StageTotal, error)
	RepLeads(ctx context.Context, scope tenant.Scope) ([]RepLeads, error)
	RepDeals(ctx context.Context, scope tenant.Scope) ([]RepDeals, error)
	Tasks(ctx context.Context, scope tenant.Scope, owner uuid.UUID, now time.Time) (TaskStats, error)
	Customers(ctx context.Context, scope tenant.Scope, owner uuid.UUID) (CustomerStats, error)
	ActiveUsers(ctx context.Context, scope tenant.Scope) (int, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func owned(b sq.SelectBuilder, column string, owner uuid.UUID) sq.SelectBuilder {
	if owner == uuid.Nil {
		return b
	}
	return b.Where(sq.Eq{column: owner})
}

func leadCountsQuery(scope tenant.Scope, owner uuid.UUID) sq.SelectBuilder {
	return owned(scope.Select("leads", "status", "COUNT(*)"), "assigned_to", owner).GroupBy("status")
}

func pipelineQuery(scope tenant.Scope, owner uuid.UUID) sq.SelectBuilder {
	return owned(scope.Select("deals", "stage", "COUNT(*)",
		"COALESCE(SUM(value), 0)::float8",
		"COALESCE(SUM(value * probability / 100.0), 0)::float8",
	), "owner_id", owner).GroupBy("stage")
}

func repLeadsQuery(scope tenant.Scope) sq.SelectBuilder {
	b := scope.Select("leads l", "u.id", "u.name", "COUNT(*)", "COUNT(*) FILTER (WHERE l.status = 'won')")
	return scope.Join(b, "users u", "u.id = l.assigned_to").GroupBy("u.id", "u.name").OrderBy("COUNT(*) DESC", "u.name")
}

func repDealsQuery(scope tenant.Scope) sq.SelectBuilder {
	b := scope.Select("deals d", "u.id", "u.name", "COUNT(*)",
		"COUNT(*) FILTER (WHERE d.stage = 'closed_won')",
		"COALESCE(SUM(d.value) FILTER (WHERE d.stage = 'closed_won'), 0)::float8",
	)
	return scope.Join(b, "users u", "u.id = d.owner_id").GroupBy("u.id", "u.name").OrderBy("u.name")
}

func tasksQuery(scope tenant.Scope, owner uuid.UUID, now time.Time) sq.SelectBuilder {
	b := scope.Select("tasks").
		Column("COUNT(*) FILTER (WHERE status <> 'done')").
		Column(sq.Expr("COUNT(*) FILTER (WHERE status <> 'done' AND due_at < ?)", now))
	return owned(b, "assigned_to", owner)
}

func customersQuery(scope tenant.Scope, owner uuid.UUID) sq.SelectBuilder {
	return owned(scope.Select("customers", "COUNT(*)", "COUNT(*) FILTER (WHERE status = 'active')"), "owner_id", owner)
}

func (r *repository) LeadCounts(ctx context.Context, scope tenant.Scope, owner uuid.UUID) ([]StatusCount, error) {
	query, args, err := leadCountsQuery(scope, owner).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *repository) Pipeline(ctx context.Context, scope tenant.Scope, owner uuid.UUID) ([]StageTotal, error) {
	query, args, err := pipelineQuery(scope, owner).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StageTotal
	for rows.Next() {
		var st StageTotal
		if err := rows.Scan(&st.Stage, &st.Count, &st.Value, &st.Weighted); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *repository) RepLeads(ctx context.Context, scope tenant.Scope) ([]RepLeads, error) {
	query, args, err := repLeadsQuery(scope).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RepLeads
	for rows.Next() {
		var rl RepLeads
		if err := rows.Scan(&rl.UserID, &rl.Name, &rl.Leads, &rl.Won); err != nil {
			return nil, err
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

func (r *repository) RepDeals(ctx context.Context, scope tenant.Scope) ([]RepDeals, error) {
	query, args, err := repDealsQuery(scope).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RepDeals
	for rows.Next() {
		var rd RepDeals
		if err := rows.Scan(&rd.UserID, &rd.Name, &rd.Deals, &rd.Won, &rd.WonValue); err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func (r *repository) Tasks(ctx context.Context, scope tenant.Scope, owner uuid.UUID, now time.Time) (TaskStats, error) {
	var stats TaskStats
	query, args, err := tasksQuery(scope, owner, now).ToSql()
	if err != nil {
		return stats, err
	}
	err = r.db.QueryRow(ctx, query, args...).Scan(&stats.Open, &stats.Overdue)
	return stats, err
}

func (r *repository) Customers(ctx context.Context, scope tenant.Scope, owner uuid.UUID) (CustomerStats, error) {
	var stats CustomerStats
	query, args, err := customersQuery(scope, owner).ToSql()
	if err != nil {
		return stats, err
	}
	err = r.db.QueryRow(ctx, query, args...).Scan(&stats.Total, &stats.Active)
	return stats, err
}

func (r *repository) ActiveUsers(ctx context.Context, scope tenant.Scope) (int, error) {
	query, args, err := scope.Count("users").Where(sq.Eq{"is_active": true}).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

package tasks

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

const table = "tasks"

// Repository persists tasks inside a tenant scope.
type Repository interface {
	List(ctx context.Context, scope tenant.Scope, filter Filter) ([]Task, int, error)
	Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Task, error)
	Create(ctx context.Context, scope tenant.Scope, t Task) (*Task, error)
	Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Task, error)
	Delete(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) error
	MemberExists(ctx context.Context, scope tenant.Scope, userID uuid.UUID) error
	RelatedExists(ctx context.Context, scope tenant.Scope, kind RelatedType, id uuid.UUID) error
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

var taskColumns = []string{
	"id", "company_id", "title", "description", "due_at", "priority", "status", "assigned_to",
	"related_type", "related_id", "completed_at", "created_by", "created_at", "updated_at",
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.CompanyID, &t.Title, &t.Description, &t.DueAt, &t.Priority, &t.Status,
		&t.AssignedTo, &t.RelatedType, &t.RelatedID, &t.CompletedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func filtered(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.Owner != uuid.Nil {
		b = b.Where(sq.Eq{"assigned_to": f.Owner})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	} else if f.Open {
		b = b.Where(sq.NotEq{"status": string(StatusDone)})
	}
	if f.RelatedType != RelatedNone {
		b = b.Where(sq.Eq{"related_type": string(f.RelatedType)})
	}
	if f.RelatedID != uuid.Nil {
		b = b.Where(sq.Eq{"related_id": f.RelatedID})
	}
	return b
}

func listQuery(scope tenant.Scope, f Filter) sq.SelectBuilder {
	b := filtered(scope.Select(table, taskColumns...), f).OrderBy("due_at ASC NULLS LAST", "created_at DESC")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b
}

func byID(id, owner uuid.UUID) sq.Eq {
	if owner == uuid.Nil {
		return sq.Eq{"id": id}
	}
	return sq.Eq{"id": id, "assigned_to": owner}
}

func (r *repository) List(ctx context.Context, scope tenant.Scope, f Filter) ([]Task, int, error) {
	query, args, err := filtered(scope.Count(table), f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query, args, err = listQuery(scope, f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Task, error) {
	query, args, err := scope.Select(table, taskColumns...).Where(byID(id, owner)).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTask(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Create(ctx context.Context, scope tenant.Scope, t Task) (*Task, error) {
	query, args, err := scope.Insert(table, map[string]any{
		"id":           t.ID,
		"title":        t.Title,
		"description":  t.Description,
		"due_at":       t.DueAt,
		"priority":     string(t.Priority),
		"status":       string(t.Status),
		"assigned_to":  t.AssignedTo,
		"related_type": string(t.RelatedType),
		"related_id":   t.RelatedID,
		"created_by":   t.CreatedBy,
	}).Suffix("RETURNING " + strings.Join(taskColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTask(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Task, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["updated_at"] = sq.Expr("now()")
	query, args, err := scope.Update(table, values).Where(byID(id, owner)).
		Suffix("RETURNING " + strings.Join(taskColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTask(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Delete(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) error {
	query, args, err := scope.Delete(table).Where(byID(id, owner)).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) exists(ctx context.Context, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	var one int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return httpx.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *repository) MemberExists(ctx context.Context, scope tenant.Scope, userID uuid.UUID) error {
	return r.exists(ctx, scope.Select("users", "1").Where(sq.Eq{"id": userID, "is_active": true}))
}

func (r *repository) RelatedExists(ctx context.Context, scope tenant.Scope, kind RelatedType, id uuid.UUID) error {
	relatedTable, ok := kind.Table()
	if !ok {
		return httpx.ErrValidation
	}
	return r.exists(ctx, scope.Select(relatedTable, "1").Where(sq.Eq{"id": id}))
}

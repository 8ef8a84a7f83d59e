package leads

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
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

const table = "leads"

// Repository persists leads. Every method takes the scope the guard admitted;
// owner, when not uuid.Nil, further restricts rows to that assignee.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, scope tenant.Scope, filter Filter) ([]Lead, int, error)
	StatusTotals(ctx context.Context, scope tenant.Scope, owner uuid.UUID) (map[Status]StatusTotal, error)
	Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Lead, error)
	Create(ctx context.Context, scope tenant.Scope, lead Lead) (*Lead, error)
	Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Lead, error)
	Delete(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) error
	MemberRole(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (rbac.Role, error)
	CreateCustomer(ctx context.Context, scope tenant.Scope, c NewCustomer) (uuid.UUID, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

var leadColumns = []string{
	"id", "company_id", "name", "email", "phone", "company_name", "source", "status",
	"value", "notes", "assigned_to", "created_by", "customer_id", "created_at", "updated_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.CompanyID, &l.Name, &l.Email, &l.Phone, &l.CompanyName, &l.Source, &l.Status,
		&l.Value, &l.Notes, &l.AssignedTo, &l.CreatedBy, &l.CustomerID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func filtered(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.Owner != uuid.Nil {
		b = b.Where(sq.Eq{"assigned_to": f.Owner})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Unassigned {
		b = b.Where(sq.Eq{"assigned_to": nil})
	} else if f.AssignedTo != uuid.Nil {
		b = b.Where(sq.Eq{"assigned_to": f.AssignedTo})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		b = b.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"company_name": pattern},
		})
	}
	return b
}

func listQuery(scope tenant.Scope, f Filter) sq.SelectBuilder {
	b := filtered(scope.Select(table, leadColumns...), f).OrderBy("created_at DESC", "id")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b
}

func countQuery(scope tenant.Scope, f Filter) sq.SelectBuilder {
	return filtered(scope.Count(table), f)
}

func byID(id, owner uuid.UUID) sq.Sqlizer {
	if owner == uuid.Nil {
		return sq.Eq{"id": id}
	}
	return sq.Eq{"id": id, "assigned_to": owner}
}

func (r *repository) List(ctx context.Context, scope tenant.Scope, f Filter) ([]Lead, int, error) {
	query, args, err := countQuery(scope, f).ToSql()
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

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Lead, error) {
	query, args, err := scope.Select(table, leadColumns...).Where(byID(id, owner)).ToSql()
	if err != nil {
		return nil, err
	}
	return scanLead(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Create(ctx context.Context, scope tenant.Scope, l Lead) (*Lead, error) {
	query, args, err := scope.Insert(table, map[string]any{
		"id":           l.ID,
		"name":         l.Name,
		"email":        l.Email,
		"phone":        l.Phone,
		"company_name": l.CompanyName,
		"source":       l.Source,
		"status":       string(l.Status),
		"value":        l.Value,
		"notes":        l.Notes,
		"assigned_to":  l.AssignedTo,
		"created_by":   l.CreatedBy,
	}).Suffix("RETURNING " + strings.Join(leadColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanLead(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Lead, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["updated_at"] = sq.Expr("now()")
	query, args, err := scope.Update(table, values).Where(byID(id, owner)).
		Suffix("RETURNING " + strings.Join(leadColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanLead(r.db.QueryRow(ctx, query, args...))
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

func statusTotalsQuery(scope tenant.Scope, owner uuid.UUID) sq.SelectBuilder {
	return filtered(scope.Select(table, "status", "COUNT(*)", "COALESCE(SUM(value), 0)::float8"), Filter{Owner: owner}).
		GroupBy("status")
}

// StatusTotals counts and sums the visible leads per status.
func (r *repository) StatusTotals(ctx context.Context, scope tenant.Scope, owner uuid.UUID) (map[Status]StatusTotal, error) {
	query, args, err := statusTotalsQuery(scope, owner).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[Status]StatusTotal)
	for rows.Next() {
		var (
			status Status
			total  StatusTotal
		)
		if err := rows.Scan(&status, &total.Count, &total.Value); err != nil {
			return nil, err
		}
		out[status] = total
	}
	return out, rows.Err()
}

// MemberRole returns the role of an active user of the scope's company.
func (r *repository) MemberRole(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (rbac.Role, error) {
	query, args, err := scope.Select("users", "role").Where(sq.Eq{"id": userID, "is_active": true}).ToSql()
	if err != nil {
		return "", err
	}
	var role string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", httpx.ErrNotFound
		}
		return "", err
	}
	parsed, _ := rbac.ParseRole(role)
	return parsed, nil
}

func (r *repository) CreateCustomer(ctx context.Context, scope tenant.Scope, c NewCustomer) (uuid.UUID, error) {
	id := uuid.New()
	query, args, err := scope.Insert("customers", map[string]any{
		"id":           id,
		"name":         c.Name,
		"email":        c.Email,
		"phone":        c.Phone,
		"company_name": c.CompanyName,
		"notes":        c.Notes,
		"owner_id":     c.OwnerID,
	}).ToSql()
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

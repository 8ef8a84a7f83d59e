package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

const table = "customers"

// Repository persists customers inside a tenant scope. A non-nil owner limits
// rows to that owner_id.
type Repository interface {
	List(ctx context.Context, scope tenant.Scope, filter Filter) ([]Customer, int, error)
	Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Customer, error)
	Create(ctx context.Context, scope tenant.Scope, c Customer) (*Customer, error)
	Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Customer, error)
	Delete(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) error
	// Dependents counts deals and tasks in the scope that reference the customer.
	Dependents(ctx context.Context, scope tenant.Scope, id uuid.UUID) (int, error)
	MemberExists(ctx context.Context, scope tenant.Scope, userID uuid.UUID) error
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

var customerColumns = []string{
	"id", "company_id", "name", "email", "phone", "company_name", "address", "status",
	"notes", "owner_id", "created_at", "updated_at",
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.CompanyName, &c.Address,
		&c.Status, &c.Notes, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func filtered(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.Owner != uuid.Nil {
		b = b.Where(sq.Eq{"owner_id": f.Owner})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		b = b.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"company_name": pattern},
			sq.ILike{"phone": pattern},
		})
	}
	return b
}

func listQuery(scope tenant.Scope, f Filter) sq.SelectBuilder {
	b := filtered(scope.Select(table, customerColumns...), f).OrderBy("name", "id")
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
	return sq.Eq{"id": id, "owner_id": owner}
}

func (r *repository) List(ctx context.Context, scope tenant.Scope, f Filter) ([]Customer, int, error) {
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
	out := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Customer, error) {
	query, args, err := scope.Select(table, customerColumns...).Where(byID(id, owner)).ToSql()
	if err != nil {
		return nil, err
	}
	return scanCustomer(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Create(ctx context.Context, scope tenant.Scope, c Customer) (*Customer, error) {
	query, args, err := scope.Insert(table, map[string]any{
		"id":           c.ID,
		"name":         c.Name,
		"email":        c.Email,
		"phone":        c.Phone,
		"company_name": c.CompanyName,
		"address":      c.Address,
		"status":       string(c.Status),
		"notes":        c.Notes,
		"owner_id":     c.OwnerID,
	}).Suffix("RETURNING " + strings.Join(customerColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanCustomer(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Customer, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["updated_at"] = sq.Expr("now()")
	query, args, err := scope.Update(table, values).Where(byID(id, owner)).
		Suffix("RETURNING " + strings.Join(customerColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanCustomer(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Delete(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) error {
	query, args, err := scope.Delete(table).Where(byID(id, owner)).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: customer still has deals", httpx.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func dependentQueries(scope tenant.Scope, id uuid.UUID) []sq.SelectBuilder {
	return []sq.SelectBuilder{
		scope.Count("deals").Where(sq.Eq{"customer_id": id}),
		scope.Count("tasks").Where(sq.Eq{"related_type": "customer", "related_id": id}),
	}
}

func (r *repository) Dependents(ctx context.Context, scope tenant.Scope, id uuid.UUID) (int, error) {
	total := 0
	for _, b := range dependentQueries(scope, id) {
		query, args, err := b.ToSql()
		if err != nil {
			return 0, err
		}
		var n int
		if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// MemberExists returns ErrNotFound unless userID is an active user of the scope's company.
func (r *repository) MemberExists(ctx context.Context, scope tenant.Scope, userID uuid.UUID) error {
	query, args, err := scope.Select("users", "1").Where(sq.Eq{"id": userID, "is_active": true}).ToSql()
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

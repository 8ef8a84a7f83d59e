package deals

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

const table = "deals"

// Repository persists deals inside a tenant scope.
type Repository interface {
	List(ctx context.Context, scope tenant.Scope, filter Filter) ([]Deal, int, error)
	Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Deal, error)
	Create(ctx context.Context, scope tenant.Scope, d Deal) (*Deal, error)
	Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Deal, error)
	Delete(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) error
	// CustomerVisible returns ErrNotFound unless the customer exists in scope
	// and, for a non-nil owner, belongs to that owner.
	CustomerVisible(ctx context.Context, scope tenant.Scope, customerID, owner uuid.UUID) error
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

var dealColumns = []string{
	"id", "company_id", "title", "customer_id", "value", "currency", "stage", "probability",
	"expected_close", "owner_id", "created_at", "updated_at",
}

func scanDeal(row pgx.Row) (*Deal, error) {
	var d Deal
	err := row.Scan(&d.ID, &d.CompanyID, &d.Title, &d.CustomerID, &d.Value, &d.Currency, &d.Stage,
		&d.Probability, &d.ExpectedClose, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func filtered(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.Owner != uuid.Nil {
		b = b.Where(sq.Eq{"owner_id": f.Owner})
	}
	if f.Stage != "" {
		b = b.Where(sq.Eq{"stage": string(f.Stage)})
	}
	if f.CustomerID != uuid.Nil {
		b = b.Where(sq.Eq{"customer_id": f.CustomerID})
	}
	return b
}

func byID(id, owner uuid.UUID) sq.Eq {
	if owner == uuid.Nil {
		return sq.Eq{"id": id}
	}
	return sq.Eq{"id": id, "owner_id": owner}
}

func (r *repository) List(ctx context.Context, scope tenant.Scope, f Filter) ([]Deal, int, error) {
	query, args, err := filtered(scope.Count(table), f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	b := filtered(scope.Select(table, dealColumns...), f).OrderBy("created_at DESC", "id")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	query, args, err = b.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID) (*Deal, error) {
	query, args, err := scope.Select(table, dealColumns...).Where(byID(id, owner)).ToSql()
	if err != nil {
		return nil, err
	}
	return scanDeal(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Create(ctx context.Context, scope tenant.Scope, d Deal) (*Deal, error) {
	query, args, err := scope.Insert(table, map[string]any{
		"id":             d.ID,
		"title":          d.Title,
		"customer_id":    d.CustomerID,
		"value":          d.Value,
		"currency":       d.Currency,
		"stage":          string(d.Stage),
		"probability":    d.Probability,
		"expected_close": d.ExpectedClose,
		"owner_id":       d.OwnerID,
	}).Suffix("RETURNING " + strings.Join(dealColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanDeal(r.db.QueryRow(ctx, query, args...))
}

func (r *repository) Update(ctx context.Context, scope tenant.Scope, id, owner uuid.UUID, updates map[string]any) (*Deal, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["updated_at"] = sq.Expr("now()")
	query, args, err := scope.Update(table, values).Where(byID(id, owner)).
		Suffix("RETURNING " + strings.Join(dealColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	return scanDeal(r.db.QueryRow(ctx, query, args...))
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

func customerQuery(scope tenant.Scope, customerID, owner uuid.UUID) sq.SelectBuilder {
	pred := sq.Eq{"id": customerID}
	if owner != uuid.Nil {
		pred["owner_id"] = owner
	}
	return scope.Select("customers", "1").Where(pred)
}

func (r *repository) CustomerVisible(ctx context.Context, scope tenant.Scope, customerID, owner uuid.UUID) error {
	query, args, err := customerQuery(scope, customerID, owner).ToSql()
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

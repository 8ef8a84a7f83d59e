package users

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
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

const table = "users"

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, scope tenant.Scope, filter Filter) ([]User, int, error)
	Get(ctx context.Context, scope tenant.Scope, id uuid.UUID, activeOnly bool) (*User, error)
	Create(ctx context.Context, scope tenant.Scope, u NewUser) (*User, error)
	Update(ctx context.Context, scope tenant.Scope, id uuid.UUID, updates map[string]any) (*User, error)
	Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewTxRepository binds the repository to an open transaction.
func NewTxRepository(tx db.DBTX) *Repository {
	return &Repository{db: tx}
}

var userColumns = []string{"id", "company_id", "email", "name", "role", "is_active", "last_login_at", "created_at", "updated_at"}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &role, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	u.Role, _ = rbac.ParseRole(role)
	return &u, nil
}

func filtered(b sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}
	if f.Role != "" {
		b = b.Where(sq.Eq{"role": string(f.Role)})
	}
	return b
}

// List returns users of the scope's company.
func (r *Repository) List(ctx context.Context, scope tenant.Scope, f Filter) ([]User, int, error) {
	query, args, err := filtered(scope.Count(table), f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	b := filtered(scope.Select(table, userColumns...), f).OrderBy("name", "id")
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
	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Get returns one user of the scope's company.
func (r *Repository) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID, activeOnly bool) (*User, error) {
	pred := sq.Eq{"id": id}
	if activeOnly {
		pred["is_active"] = true
	}
	query, args, err := scope.Select(table, userColumns...).Where(pred).ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(r.db.QueryRow(ctx, query, args...))
}

// Create inserts a user. A taken email yields ErrDuplicate.
func (r *Repository) Create(ctx context.Context, scope tenant.Scope, u NewUser) (*User, error) {
	query, args, err := scope.Insert(table, map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"name":          u.Name,
		"role":          string(u.Role),
		"password_hash": u.PasswordHash,
	}).Suffix("RETURNING " + strings.Join(userColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	return user, err
}

// Update applies column updates to a user of the scope's company.
func (r *Repository) Update(ctx context.Context, scope tenant.Scope, id uuid.UUID, updates map[string]any) (*User, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["updated_at"] = sq.Expr("now()")
	query, args, err := scope.Update(table, values).Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	return user, err
}

// Delete removes a user of the scope's company.
func (r *Repository) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	query, args, err := scope.Delete(table).Where(sq.Eq{"id": id}).ToSql()
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

package auth

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	TouchLogin(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL. Lookups run before a
// principal exists, so they are the unscoped reads of the users table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var userColumns = []string{"id", "company_id", "email", "name", "role", "password_hash", "is_active", "last_login_at"}

func selectUser() sq.SelectBuilder {
	return tenant.Unscoped().Select(userColumns...).From("users")
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, selectUser().Where(sq.Expr("lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))))
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, selectUser().Where(sq.Eq{"id": id}))
}

// TouchLogin stamps the last successful login.
func (r *PGRepository) TouchLogin(ctx context.Context, id uuid.UUID) error {
	query, args, err := tenant.Unscoped().Update("users").Set("last_login_at", sq.Expr("now()")).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, args...)
	return err
}

func (r *PGRepository) findOne(ctx context.Context, b sq.SelectBuilder) (*User, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var (
		u    User
		role string
	)
	err = r.pool.QueryRow(ctx, query, args...).Scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.IsActive, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	// An unrecognised stored role leaves the zero Role, which is granted nothing.
	u.Role, _ = rbac.ParseRole(role)
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)

package setup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/settings"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
	"github.com/odyssey-crm/odyssey-crm/internal/users"
)

// PGStore writes a tenant inside one transaction.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs the store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func companyQuery(t Tenant) (string, []any, error) {
	return tenant.Unscoped().Insert("companies").
		Columns("id", "name").
		Values(t.CompanyID, t.CompanyName).
		ToSql()
}

// Bootstrap implements Store.
func (s *PGStore) Bootstrap(ctx context.Context, t Tenant) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		query, args, err := companyQuery(t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert company: %w", err)
		}

		scope, err := tenant.Resolve(rbac.Principal{ID: t.AdminID, CompanyID: t.CompanyID, Role: rbac.RoleAdmin})
		if err != nil {
			return err
		}
		if _, err := users.NewTxRepository(tx).Create(ctx, scope, users.NewUser{
			ID:           t.AdminID,
			Email:        t.AdminEmail,
			Name:         t.AdminName,
			Role:         rbac.RoleAdmin,
			PasswordHash: t.PasswordHash,
		}); err != nil {
			return err
		}

		defaults := settings.Defaults(t.CompanyID, t.CompanyName)
		defaults.Timezone = t.Timezone
		if _, err := settings.NewTxRepository(tx).Save(ctx, scope, defaults); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		return nil
	})
}

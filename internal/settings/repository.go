package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/tenant"
)

const table = "company_settings"

var settingsColumns = []string{"company_id", "display_name", "timezone", "currency", "lead_sources", "updated_at"}

// Repository persists company settings.
type Repository interface {
	Get(ctx context.Context, scope tenant.Scope) (*Settings, error)
	Save(ctx context.Context, scope tenant.Scope, s Settings) (*Settings, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// NewTxRepository binds a Repository to an open transaction.
func NewTxRepository(tx db.DBTX) Repository {
	return &repository{db: tx}
}

func scanSettings(row pgx.Row) (*Settings, error) {
	var s Settings
	if err := row.Scan(&s.CompanyID, &s.DisplayName, &s.Timezone, &s.Currency, &s.LeadSources, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the company's settings, or the defaults when none were saved.
func (r *repository) Get(ctx context.Context, scope tenant.Scope) (*Settings, error) {
	query, args, err := scope.Select(table, settingsColumns...).ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanSettings(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		d := Defaults(scope.CompanyID(), "")
		return &d, nil
	}
	return s, err
}

func saveQuery(scope tenant.Scope, s Settings) (string, []any, error) {
	sources := s.LeadSources
	if sources == nil {
		sources = []string{}
	}
	return scope.Insert(table, map[string]any{
		"display_name": s.DisplayName,
		"timezone":     s.Timezone,
		"currency":     s.Currency,
		"lead_sources": sources,
	}).Suffix(`ON CONFLICT (company_id) DO UPDATE SET
		display_name = EXCLUDED.display_name,
		timezone = EXCLUDED.timezone,
		currency = EXCLUDED.currency,
		lead_sources = EXCLUDED.lead_sources,
		updated_at = now()
	RETURNING company_id, display_name, timezone, currency, lead_sources, updated_at`).ToSql()
}

// Save upserts the company's settings.
func (r *repository) Save(ctx context.Context, scope tenant.Scope, s Settings) (*Settings, error) {
	query, args, err := saveQuery(scope, s)
	if err != nil {
		return nil, err
	}
	return scanSettings(r.db.QueryRow(ctx, query, args...))
}

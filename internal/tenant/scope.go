// Package tenant resolves the company a principal may operate on and builds
// queries confined to it.
package tenant

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// Column is the tenant key carried by every business table.
const Column = "company_id"

// ErrMissingCompany is returned when an authenticated principal has no company.
var ErrMissingCompany = fmt.Errorf("%w: principal has no company", httpx.ErrConfiguration)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Scope confines queries to a single company. The zero Scope matches nothing.
type Scope struct {
	companyID uuid.UUID
}

// Resolve derives the scope for p.
func Resolve(p rbac.Principal) (Scope, error) {
	if p.CompanyID == uuid.Nil {
		return Scope{}, ErrMissingCompany
	}
	return Scope{companyID: p.CompanyID}, nil
}

// CompanyID returns the company the scope is bound to.
func (s Scope) CompanyID() uuid.UUID { return s.companyID }

// Valid reports whether the scope is bound to a company.
func (s Scope) Valid() bool { return s.companyID != uuid.Nil }

// predicate qualifies the tenant column with the table alias when one is given
// ("leads l" yields l.company_id).
func (s Scope) predicate(table string) sq.Sqlizer {
	if !s.Valid() {
		return sq.Expr("1 = 0")
	}
	fields := strings.Fields(table)
	col := Column
	if len(fields) > 0 {
		col = fields[len(fields)-1] + "." + Column
	}
	return sq.Eq{col: s.companyID}
}

// Select starts a SELECT on table filtered to the scope.
func (s Scope) Select(table string, columns ...string) sq.SelectBuilder {
	return psql.Select(columns...).From(table).Where(s.predicate(table))
}

// Count starts a SELECT COUNT(*) on table filtered to the scope.
func (s Scope) Count(table string) sq.SelectBuilder {
	return s.Select(table, "COUNT(*)")
}

// Join adds an inner join on table whose rows are also confined to the scope.
func (s Scope) Join(b sq.SelectBuilder, table, on string) sq.SelectBuilder {
	return s.join(b.Join, table, on)
}

// LeftJoin adds a left join on table whose rows are also confined to the scope.
func (s Scope) LeftJoin(b sq.SelectBuilder, table, on string) sq.SelectBuilder {
	return s.join(b.LeftJoin, table, on)
}

func (s Scope) join(fn func(string, ...any) sq.SelectBuilder, table, on string) sq.SelectBuilder {
	pred, args, _ := s.predicate(table).ToSql()
	return fn(fmt.Sprintf("%s ON %s AND %s", table, on, pred), args...)
}

// Update starts an UPDATE on table filtered to the scope. A company_id key in
// values is dropped so rows can never move between tenants.
func (s Scope) Update(table string, values map[string]any) sq.UpdateBuilder {
	clean := make(map[string]any, len(values))
	for k, v := range values {
		if k == Column {
			continue
		}
		clean[k] = v
	}
	return psql.Update(table).SetMap(clean).Where(s.predicate(table))
}

// Delete starts a DELETE on table filtered to the scope.
func (s Scope) Delete(table string) sq.DeleteBuilder {
	return psql.Delete(table).Where(s.predicate(table))
}

// Insert starts an INSERT on table with company_id forced to the scope's company.
func (s Scope) Insert(table string, values map[string]any) sq.InsertBuilder {
	row := make(map[string]any, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	row[Column] = s.companyID
	return psql.Insert(table).SetMap(row)
}

// Unscoped returns a builder with no tenant filter. It is reserved for company
// setup and credential lookups that run before a principal exists.
func Unscoped() sq.StatementBuilderType {
	return psql
}

// Package rbac holds the static role to permission table and the permission check.
package rbac

import "github.com/google/uuid"

// Role is the named grouping a user is assigned to. The zero value means no role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
	RoleSupport Role = "support"
)

// Roles lists every valid role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleSales, RoleSupport}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales, RoleSupport:
		return true
	default:
		return false
	}
}

// ParseRole converts a stored or submitted role name. Unknown names yield the zero Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Principal describes the authenticated actor for one request.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"companyId"`
	Role      Role      `json:"role"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
}

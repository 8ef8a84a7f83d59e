package rbac

import "sort"

type permissionSet map[Permission]struct{}

func set(perms ...Permission) permissionSet {
	out := make(permissionSet, len(perms))
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}

// grants is never mutated after package initialisation.
var grants = map[Role]permissionSet{
	RoleAdmin: set(
		PermAccessUserManagement, PermViewTeamMembers, PermCreateUsers, PermEditUsers, PermDeleteUsers,
		PermAccessSettings, PermManageSettings, PermManageBackups, PermAccessReports,
		PermAssignLeads, PermViewLeads, PermCreateLeads, PermEditLeads, PermDeleteLeads, PermViewTeamLeads,
		PermViewCustomers, PermCreateCustomers, PermEditCustomers, PermDeleteCustomers, PermViewTeamCustomers,
		PermViewDeals, PermCreateDeals, PermEditDeals, PermDeleteDeals, PermViewTeamDeals,
		PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks, PermViewTeamTasks,
		PermAccessAdminDashboard, PermAccessManagerDashboard, PermAccessSalesDashboard, PermAccessSupportDashboard,
	),
	RoleManager: set(
		PermViewTeamMembers, PermAccessReports, PermAssignLeads,
		PermViewLeads, PermCreateLeads, PermEditLeads, PermDeleteLeads, PermViewTeamLeads,
		PermViewCustomers, PermCreateCustomers, PermEditCustomers, PermDeleteCustomers, PermViewTeamCustomers,
		PermViewDeals, PermCreateDeals, PermEditDeals, PermDeleteDeals, PermViewTeamDeals,
		PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks, PermViewTeamTasks,
		PermAccessManagerDashboard,
	),
	RoleSales: set(
		PermViewLeads, PermCreateLeads, PermEditLeads, PermDeleteLeads,
		PermViewCustomers, PermCreateCustomers, PermEditCustomers, PermDeleteCustomers,
		PermViewDeals, PermCreateDeals, PermEditDeals, PermDeleteDeals,
		PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks,
		PermAccessSalesDashboard,
	),
	RoleSupport: set(
		PermViewCustomers, PermViewTeamCustomers,
		PermViewTasks, PermCreateTasks, PermEditTasks,
		PermAccessSupportDashboard,
	),
}

// HasPermission reports whether role is granted permission. Unknown roles and
// permissions are denied.
func HasPermission(role Role, permission Permission) bool {
	perms, ok := grants[role]
	if !ok {
		return false
	}
	_, ok = perms[permission]
	return ok
}

// HasPermissionName is HasPermission over wire names.
func HasPermissionName(role, permission string) bool {
	return HasPermission(Role(role), Permission(permission))
}

// Permissions returns the sorted permissions granted to role.
func Permissions(role Role) []Permission {
	perms := grants[role]
	out := make([]Permission, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Grants returns a copy of the whole table keyed by role.
func Grants() map[Role][]Permission {
	out := make(map[Role][]Permission, len(grants))
	for role := range grants {
		out[role] = Permissions(role)
	}
	return out
}

// DashboardPermission returns the dashboard permission that belongs to role.
func DashboardPermission(role Role) (Permission, bool) {
	switch role {
	case RoleAdmin:
		return PermAccessAdminDashboard, true
	case RoleManager:
		return PermAccessManagerDashboard, true
	case RoleSales:
		return PermAccessSalesDashboard, true
	case RoleSupport:
		return PermAccessSupportDashboard, true
	default:
		return "", false
	}
}

package rbac

// Permission names a single capability. Wire names are camelCase.
type Permission string

const (
	PermAccessUserManagement Permission = "canAccessUserManagement"
	PermViewTeamMembers      Permission = "canViewTeamMembers"
	PermCreateUsers          Permission = "canCreateUsers"
	PermEditUsers            Permission = "canEditUsers"
	PermDeleteUsers          Permission = "canDeleteUsers"

	PermAccessSettings Permission = "canAccessSettings"
	PermManageSettings Permission = "canManageSettings"
	PermManageBackups  Permission = "canManageBackups"
	PermAccessReports  Permission = "canAccessReports"

	PermAssignLeads   Permission = "canAssignLeads"
	PermViewLeads     Permission = "canViewLeads"
	PermCreateLeads   Permission = "canCreateLeads"
	PermEditLeads     Permission = "canEditLeads"
	PermDeleteLeads   Permission = "canDeleteLeads"
	PermViewTeamLeads Permission = "canViewTeamLeads"

	PermViewCustomers     Permission = "canViewCustomers"
	PermCreateCustomers   Permission = "canCreateCustomers"
	PermEditCustomers     Permission = "canEditCustomers"
	PermDeleteCustomers   Permission = "canDeleteCustomers"
	PermViewTeamCustomers Permission = "canViewTeamCustomers"

	PermViewDeals     Permission = "canViewDeals"
	PermCreateDeals   Permission = "canCreateDeals"
	PermEditDeals     Permission = "canEditDeals"
	PermDeleteDeals   Permission = "canDeleteDeals"
	PermViewTeamDeals Permission = "canViewTeamDeals"

	PermViewTasks     Permission = "canViewTasks"
	PermCreateTasks   Permission = "canCreateTasks"
	PermEditTasks     Permission = "canEditTasks"
	PermDeleteTasks   Permission = "canDeleteTasks"
	PermViewTeamTasks Permission = "canViewTeamTasks"

	PermAccessAdminDashboard   Permission = "canAccessAdminDashboard"
	PermAccessManagerDashboard Permission = "canAccessManagerDashboard"
	PermAccessSalesDashboard   Permission = "canAccessSalesDashboard"
	PermAccessSupportDashboard Permission = "canAccessSupportDashboard"
)

var allPermissions = []Permission{
	PermAccessUserManagement, PermViewTeamMembers, PermCreateUsers, PermEditUsers, PermDeleteUsers,
	PermAccessSettings, PermManageSettings, PermManageBackups, PermAccessReports,
	PermAssignLeads, PermViewLeads, PermCreateLeads, PermEditLeads, PermDeleteLeads, PermViewTeamLeads,
	PermViewCustomers, PermCreateCustomers, PermEditCustomers, PermDeleteCustomers, PermViewTeamCustomers,
	PermViewDeals, PermCreateDeals, PermEditDeals, PermDeleteDeals, PermViewTeamDeals,
	PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks, PermViewTeamTasks,
	PermAccessAdminDashboard, PermAccessManagerDashboard, PermAccessSalesDashboard, PermAccessSupportDashboard,
}

// AllPermissions returns every known permission.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Known reports whether p is a defined permission.
func (p Permission) Known() bool {
	for _, candidate := range allPermissions {
		if candidate == p {
			return true
		}
	}
	return false
}

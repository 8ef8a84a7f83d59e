package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
)

// Gate builds a middleware admitting requests whose principal holds every perm.
type Gate func(perms ...Permission) func(http.Handler) http.Handler

// PermissionsHandler exposes the static role table for audit listing.
type PermissionsHandler struct {
	require Gate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(require Gate) *PermissionsHandler {
	return &PermissionsHandler{require: require}
}

type roleGrants struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.require(PermAccessUserManagement))
		r.Get("/", h.listPermissions)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	table := Grants()
	out := make([]roleGrants, 0, len(table))
	for _, role := range Roles() {
		out = append(out, roleGrants{Role: role, Permissions: table[role]})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles":       out,
		"permissions": AllPermissions(),
	})
}

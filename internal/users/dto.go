package users

import "github.com/odyssey-crm/odyssey-crm/internal/rbac"

// CreateUserRequest is the payload for POST /api/users.
type CreateUserRequest struct {
	Email    string    `json:"email" validate:"required,email,max=200"`
	Name     string    `json:"name" validate:"required,max=200"`
	Role     rbac.Role `json:"role" validate:"required,oneof=admin manager sales support"`
	Password string    `json:"password" validate:"required,min=8,max=72" trim:"-"`
}

// UpdateUserRequest is the payload for PATCH /api/users/{id}.
type UpdateUserRequest struct {
	Email    *string    `json:"email" validate:"omitempty,email,max=200"`
	Name     *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Role     *rbac.Role `json:"role" validate:"omitempty,oneof=admin manager sales support"`
	IsActive *bool      `json:"isActive"`
	Password *string    `json:"password" validate:"omitempty,min=8,max=72" trim:"-"`
}

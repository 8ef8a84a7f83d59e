package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// User represents a user account for management. The password hash never
// leaves the repository.
type User struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   uuid.UUID  `json:"companyId"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        rbac.Role  `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Filter narrows a user listing.
type Filter struct {
	ActiveOnly bool
	Role       rbac.Role
	Limit      int
	Offset     int
}

// NewUser carries a user to insert.
type NewUser struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         rbac.Role
	PasswordHash string
}

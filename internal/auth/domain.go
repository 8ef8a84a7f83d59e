package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// User represents an account as seen by the authentication flow.
type User struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	Email        string
	Name         string
	Role         rbac.Role
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
}

// Principal converts the account into the per-request actor.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{
		ID:        u.ID,
		CompanyID: u.CompanyID,
		Role:      u.Role,
		Email:     u.Email,
		Name:      u.Name,
	}
}

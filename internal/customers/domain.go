package customers

import (
	"time"

	"github.com/google/uuid"
)

// Status marks whether a customer is still active.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Customer is an account the company sells to.
type Customer struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   uuid.UUID  `json:"companyId"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	CompanyName string     `json:"companyName"`
	Address     string     `json:"address"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes"`
	OwnerID     *uuid.UUID `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Filter narrows a customer listing.
type Filter struct {
	Status Status
	Search string
	Owner  uuid.UUID
	Limit  int
	Offset int
}

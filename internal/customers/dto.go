package customers

import "github.com/google/uuid"

// CreateCustomerRequest is the payload for POST /api/customers.
type CreateCustomerRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Email       string     `json:"email" validate:"omitempty,email,max=200"`
	Phone       string     `json:"phone" validate:"omitempty,max=50"`
	CompanyName string     `json:"companyName" validate:"omitempty,max=200"`
	Address     string     `json:"address" validate:"omitempty,max=500"`
	Status      Status     `json:"status" validate:"omitempty,oneof=active inactive"`
	Notes       string     `json:"notes" validate:"omitempty,max=5000"`
	OwnerID     *uuid.UUID `json:"ownerId"`
}

// UpdateCustomerRequest is the payload for PATCH /api/customers/{id}.
type UpdateCustomerRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Email       *string    `json:"email" validate:"omitempty,email,max=200"`
	Phone       *string    `json:"phone" validate:"omitempty,max=50"`
	CompanyName *string    `json:"companyName" validate:"omitempty,max=200"`
	Address     *string    `json:"address" validate:"omitempty,max=500"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=active inactive"`
	Notes       *string    `json:"notes" validate:"omitempty,max=5000"`
	OwnerID     *uuid.UUID `json:"ownerId"`
}

package leads

import "github.com/google/uuid"

// CreateLeadRequest is the payload for POST /api/leads.
type CreateLeadRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Email       string     `json:"email" validate:"omitempty,email,max=200"`
	Phone       string     `json:"phone" validate:"omitempty,max=50"`
	CompanyName string     `json:"companyName" validate:"omitempty,max=200"`
	Source      string     `json:"source" validate:"omitempty,max=50"`
	Status      Status     `json:"status" validate:"omitempty,oneof=new contacted qualified proposal"`
	Value       float64    `json:"value" validate:"gte=0"`
	Notes       string     `json:"notes" validate:"omitempty,max=5000"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
}

// UpdateLeadRequest is the payload for PATCH /api/leads/{id}. Nil fields are left unchanged.
type UpdateLeadRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Email       *string  `json:"email" validate:"omitempty,email,max=200"`
	Phone       *string  `json:"phone" validate:"omitempty,max=50"`
	CompanyName *string  `json:"companyName" validate:"omitempty,max=200"`
	Source      *string  `json:"source" validate:"omitempty,max=50"`
	Value       *float64 `json:"value" validate:"omitempty,gte=0"`
	Notes       *string  `json:"notes" validate:"omitempty,max=5000"`
}

// MoveStatusRequest is the payload for POST /api/leads/{id}/status.
type MoveStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=new contacted qualified proposal won lost"`
}

// AssignRequest is the payload for POST /api/leads/{id}/assign.
type AssignRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

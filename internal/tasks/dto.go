package tasks

import (
	"time"

	"github.com/google/uuid"
)

// CreateTaskRequest is the payload for POST /api/tasks.
type CreateTaskRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"omitempty,max=5000"`
	DueAt       *time.Time  `json:"dueAt"`
	Priority    Priority    `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedTo  *uuid.UUID  `json:"assignedTo"`
	RelatedType RelatedType `json:"relatedType" validate:"omitempty,oneof=lead customer deal"`
	RelatedID   *uuid.UUID  `json:"relatedId" validate:"required_with=RelatedType"`
}

// UpdateTaskRequest is the payload for PATCH /api/tasks/{id}.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueAt       *time.Time `json:"dueAt"`
	Priority    *Priority  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
}

package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Status is the progress of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// Priority orders tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RelatedType names the record a task is attached to.
type RelatedType string

const (
	RelatedNone     RelatedType = ""
	RelatedLead     RelatedType = "lead"
	RelatedCustomer RelatedType = "customer"
	RelatedDeal     RelatedType = "deal"
)

// Table returns the table holding records of t.
func (t RelatedType) Table() (string, bool) {
	switch t {
	case RelatedLead:
		return "leads", true
	case RelatedCustomer:
		return "customers", true
	case RelatedDeal:
		return "deals", true
	}
	return "", false
}

// Task is a to-do item, optionally attached to a lead, customer or deal.
type Task struct {
	ID          uuid.UUID   `json:"id"`
	CompanyID   uuid.UUID   `json:"companyId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueAt       *time.Time  `json:"dueAt"`
	Priority    Priority    `json:"priority"`
	Status      Status      `json:"status"`
	AssignedTo  *uuid.UUID  `json:"assignedTo"`
	RelatedType RelatedType `json:"relatedType"`
	RelatedID   *uuid.UUID  `json:"relatedId"`
	CompletedAt *time.Time  `json:"completedAt"`
	CreatedBy   *uuid.UUID  `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Overdue reports whether the task is open past its due time.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != StatusDone && t.DueAt != nil && t.DueAt.Before(now)
}

// Filter narrows a task listing.
type Filter struct {
	Status      Status
	Open        bool
	RelatedType RelatedType
	RelatedID   uuid.UUID
	Owner       uuid.UUID
	Limit       int
	Offset      int
}

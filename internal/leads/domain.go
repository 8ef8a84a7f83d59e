package leads

import (
	"time"

	"github.com/google/uuid"
)

// Status is a kanban column of the lead pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusProposal  Status = "proposal"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

// Statuses lists the pipeline columns in board order.
func Statuses() []Status {
	return []Status{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusWon, StatusLost}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusWon, StatusLost:
		return true
	}
	return false
}

// Terminal reports whether s closes the lead.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// CanMove reports whether a lead may move from one column to another. Closed
// leads only move when reopened to new.
func CanMove(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from.Terminal() {
		return to == StatusNew || to == from
	}
	return true
}

// Lead is a prospective customer.
type Lead struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   uuid.UUID  `json:"companyId"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	CompanyName string     `json:"companyName"`
	Source      string     `json:"source"`
	Status      Status     `json:"status"`
	Value       float64    `json:"value"`
	Notes       string     `json:"notes"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
	CreatedBy   *uuid.UUID `json:"createdBy"`
	CustomerID  *uuid.UUID `json:"customerId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Filter narrows a lead listing.
type Filter struct {
	Status     Status
	AssignedTo uuid.UUID
	Unassigned bool
	Search     string
	// Owner, when set, restricts results to leads assigned to that user.
	Owner  uuid.UUID
	Limit  int
	Offset int
}

// BoardColumn is one status column of the kanban board. Leads holds one page;
// Total and Value cover the whole column.
type BoardColumn struct {
	Status  Status  `json:"status"`
	Leads   []Lead  `json:"leads"`
	Total   int     `json:"total"`
	Value   float64 `json:"value"`
	HasMore bool    `json:"hasMore"`
}

// StatusTotal aggregates the leads in one status.
type StatusTotal struct {
	Count int
	Value float64
}

// Board is the lead kanban.
type Board struct {
	Columns []BoardColumn `json:"columns"`
}

// NewCustomer carries the fields copied from a lead on conversion.
type NewCustomer struct {
	Name        string
	Email       string
	Phone       string
	CompanyName string
	Notes       string
	OwnerID     *uuid.UUID
}

// Conversion is the result of converting a lead.
type Conversion struct {
	Lead       Lead      `json:"lead"`
	CustomerID uuid.UUID `json:"customerId"`
}

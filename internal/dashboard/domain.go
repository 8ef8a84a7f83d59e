// Package dashboard builds the role dashboards and tenant reports. Every
// aggregate reads through the scope and ownership the guard admitted.
package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

// StatusCount is the number of leads in one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// StageTotal summarises the deals in one pipeline stage.
type StageTotal struct {
	Stage    string  `json:"stage"`
	Count    int     `json:"count"`
	Value    float64 `json:"value"`
	Weighted float64 `json:"weighted"`
}

// RepLeads counts leads assigned to one member.
type RepLeads struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Leads  int       `json:"leads"`
	Won    int       `json:"won"`
}

// RepDeals summarises deals owned by one member.
type RepDeals struct {
	UserID   uuid.UUID `json:"userId"`
	Name     string    `json:"name"`
	Deals    int       `json:"deals"`
	Won      int       `json:"won"`
	WonValue float64   `json:"wonValue"`
}

// TaskStats counts open work.
type TaskStats struct {
	Open    int `json:"open"`
	Overdue int `json:"overdue"`
}

// CustomerStats counts customers.
type CustomerStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Dashboard is the role-selected landing view. Sections a role does not see
// are omitted.
type Dashboard struct {
	Role        rbac.Role      `json:"role"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Leads       []StatusCount  `json:"leads,omitempty"`
	Pipeline    []StageTotal   `json:"pipeline,omitempty"`
	Reps        []RepLeads     `json:"reps,omitempty"`
	Tasks       *TaskStats     `json:"tasks,omitempty"`
	Customers   *CustomerStats `json:"customers,omitempty"`
	ActiveUsers *int           `json:"activeUsers,omitempty"`
}

// LeadFunnel is the tenant's lead count per status.
type LeadFunnel struct {
	Statuses       []StatusCount `json:"statuses"`
	Total          int           `json:"total"`
	ConversionRate float64       `json:"conversionRate"`
}

// PipelineReport is the tenant's deal pipeline by stage.
type PipelineReport struct {
	Stages     []StageTotal `json:"stages"`
	OpenValue  float64      `json:"openValue"`
	Weighted   float64      `json:"weighted"`
	WonValue   float64      `json:"wonValue"`
	TotalDeals int          `json:"totalDeals"`
}

// RepPerformance merges lead and deal results for one member.
type RepPerformance struct {
	UserID   uuid.UUID `json:"userId"`
	Name     string    `json:"name"`
	Leads    int       `json:"leads"`
	LeadsWon int       `json:"leadsWon"`
	Deals    int       `json:"deals"`
	DealsWon int       `json:"dealsWon"`
	WonValue float64   `json:"wonValue"`
	WinRate  float64   `json:"winRate"`
}

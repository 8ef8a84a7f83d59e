package settings

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/customers"
	"github.com/odyssey-crm/odyssey-crm/internal/deals"
	"github.com/odyssey-crm/odyssey-crm/internal/leads"
	"github.com/odyssey-crm/odyssey-crm/internal/tasks"
	"github.com/odyssey-crm/odyssey-crm/internal/users"
)

// Settings are the per-company preferences.
type Settings struct {
	CompanyID   uuid.UUID `json:"companyId"`
	DisplayName string    `json:"displayName"`
	Timezone    string    `json:"timezone"`
	Currency    string    `json:"currency"`
	LeadSources []string  `json:"leadSources"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Defaults returns the settings a company starts with.
func Defaults(companyID uuid.UUID, displayName string) Settings {
	return Settings{
		CompanyID:   companyID,
		DisplayName: displayName,
		Timezone:    "UTC",
		Currency:    "USD",
		LeadSources: []string{"website", "referral", "event", "cold_call"},
	}
}

// UpdateSettingsRequest is the payload for PUT /api/settings.
type UpdateSettingsRequest struct {
	DisplayName string   `json:"displayName" validate:"required,max=200"`
	Timezone    string   `json:"timezone" validate:"required,timezone"`
	Currency    string   `json:"currency" validate:"required,len=3,uppercase"`
	LeadSources []string `json:"leadSources" validate:"max=50,dive,min=1,max=50"`
}

// Backup is the full export of one tenant. User password hashes are never
// part of it.
type Backup struct {
	Version    int                  `json:"version"`
	CompanyID  uuid.UUID            `json:"companyId"`
	ExportedAt time.Time            `json:"exportedAt"`
	Settings   Settings             `json:"settings"`
	Users      []users.User         `json:"users"`
	Leads      []leads.Lead         `json:"leads"`
	Customers  []customers.Customer `json:"customers"`
	Deals      []deals.Deal         `json:"deals"`
	Tasks      []tasks.Task         `json:"tasks"`
}

const backupVersion = 1

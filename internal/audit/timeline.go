// Package audit serves the tenant's audit trail.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// TimelineFilters narrow the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  uuid.UUID
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit record with the actor's display fields resolved.
type TimelineRow struct {
	ID         int64      `json:"id"`
	At         time.Time  `json:"at"`
	ActorID    *uuid.UUID `json:"actorId"`
	ActorEmail string     `json:"actorEmail"`
	Action     string     `json:"action"`
	Entity     string     `json:"entity"`
	EntityID   string     `json:"entityId"`
}

// PagingInfo describes the window returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

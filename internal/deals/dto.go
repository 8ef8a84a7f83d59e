package deals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// CreateDealRequest is the payload for POST /api/deals.
type CreateDealRequest struct {
	Title         string    `json:"title" validate:"required,max=200"`
	CustomerID    uuid.UUID `json:"customerId" validate:"required"`
	Value         float64   `json:"value" validate:"gte=0"`
	Currency      string    `json:"currency" validate:"omitempty,len=3,uppercase"`
	Stage         Stage     `json:"stage" validate:"omitempty,oneof=prospecting qualification proposal negotiation closed_won closed_lost"`
	Probability   *int      `json:"probability" validate:"omitempty,min=0,max=100"`
	ExpectedClose string    `json:"expectedClose" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateDealRequest is the payload for PATCH /api/deals/{id}.
type UpdateDealRequest struct {
	Title         *string    `json:"title" validate:"omitempty,min=1,max=200"`
	CustomerID    *uuid.UUID `json:"customerId"`
	Value         *float64   `json:"value" validate:"omitempty,gte=0"`
	Currency      *string    `json:"currency" validate:"omitempty,len=3,uppercase"`
	Probability   *int       `json:"probability" validate:"omitempty,min=0,max=100"`
	ExpectedClose *string    `json:"expectedClose" validate:"omitempty,datetime=2006-01-02"`
}

// MoveStageRequest is the payload for POST /api/deals/{id}/stage.
type MoveStageRequest struct {
	Stage Stage `json:"stage" validate:"required,oneof=prospecting qualification proposal negotiation closed_won closed_lost"`
}

// parseDate turns an optional YYYY-MM-DD string into a date.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: expectedClose", httpx.ErrValidation)
	}
	return &t, nil
}

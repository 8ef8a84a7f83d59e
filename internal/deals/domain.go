package deals

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a step of the sales pipeline.
type Stage string

const (
	StageProspecting   Stage = "prospecting"
	StageQualification Stage = "qualification"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
	StageClosedWon     Stage = "closed_won"
	StageClosedLost    Stage = "closed_lost"
)

// Stages lists the pipeline in order.
func Stages() []Stage {
	return []Stage{StageProspecting, StageQualification, StageProposal, StageNegotiation, StageClosedWon, StageClosedLost}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, candidate := range Stages() {
		if candidate == s {
			return true
		}
	}
	return false
}

// Closed reports whether s ends the deal.
func (s Stage) Closed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// DefaultProbability is the win probability a deal takes on entering s.
func (s Stage) DefaultProbability() int {
	switch s {
	case StageQualification:
		return 25
	case StageProposal:
		return 50
	case StageNegotiation:
		return 75
	case StageClosedWon:
		return 100
	case StageClosedLost:
		return 0
	default:
		return 10
	}
}

// Deal is a sales opportunity tied to a customer.
type Deal struct {
	ID            uuid.UUID  `json:"id"`
	CompanyID     uuid.UUID  `json:"companyId"`
	Title         string     `json:"title"`
	CustomerID    uuid.UUID  `json:"customerId"`
	Value         float64    `json:"value"`
	Currency      string     `json:"currency"`
	Stage         Stage      `json:"stage"`
	Probability   int        `json:"probability"`
	ExpectedClose *time.Time `json:"expectedClose"`
	OwnerID       *uuid.UUID `json:"ownerId"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Filter narrows a deal listing.
type Filter struct {
	Stage      Stage
	CustomerID uuid.UUID
	Owner      uuid.UUID
	Limit      int
	Offset     int
}

package model

import "time"

// Engagement stages mirror the board columns.
const (
	StageLead        = "lead"
	StageContacted   = "contacted"
	StageMeeting     = "meeting"
	StageProposal    = "proposal"
	StageNegotiation = "negotiation"
	StageWon         = "won"
	StageLost        = "lost"
)

// Engagement is the sales record that access decisions are scoped against.
// The CRUD surface here stays thin; the engine only needs the owner and
// the owner's manager to decide own/team/global access.
type Engagement struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	AccountName    string    `json:"account_name"`
	Stage          string    `json:"stage"`
	ValueCents     int64     `json:"value_cents"`
	OwnerID        string    `json:"owner_id"`
	OwnerManagerID *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ValidStage reports whether the stage is one of the board columns.
func ValidStage(stage string) bool {
	switch stage {
	case StageLead, StageContacted, StageMeeting, StageProposal, StageNegotiation, StageWon, StageLost:
		return true
	default:
		return false
	}
}

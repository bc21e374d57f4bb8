package chat

import "time"

// Session captures a transient anonymous conversation. Exactly one persona is
// active at any instant; ActivePersonaID is written only by the orchestrator.
type Session struct {
	ID              string    `json:"id"`
	ActivePersonaID string    `json:"activePersonaId"`
	StartedAt       time.Time `json:"startedAt"`
}

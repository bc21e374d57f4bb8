package chat

import "time"

// SpeakerUser marks a turn spoken by the human participant; persona turns use
// the persona ID as the speaker.
const SpeakerUser = "user"

// Turn is one utterance in a session's history. Turns are appended, never
// edited or removed, for the lifetime of the session.
type Turn struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	Speaker         string    `json:"speaker"`
	Content         string    `json:"content"`
	ActivePersonaID string    `json:"activePersonaId"`
	CreatedAt       time.Time `json:"createdAt"`
}

package models

import "time"

// SessionLifecycleEvent is emitted on every status change of a class session.
// The engine only produces these; delivery belongs to the notification
// collaborator consuming the dispatcher.
type SessionLifecycleEvent struct {
	SchoolID     string        `json:"school_id"`
	SessionID    string        `json:"session_id"`
	OldStatus    SessionStatus `json:"old_status,omitempty"`
	NewStatus    SessionStatus `json:"new_status"`
	ActorID      string        `json:"actor_id"`
	OccurredAt   time.Time     `json:"occurred_at"`
	Participants []string      `json:"participants"`
}

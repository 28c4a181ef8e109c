package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit logging is best-effort; critical flows must not block on it.
type Event struct {
	ID string `json:"id"`

	Type EventType `json:"type"`

	// Target identifiers (optional, depending on the event type).
	ClientID string `json:"client_id,omitempty"`
	CallID   string `json:"call_id,omitempty"`
	AgentID  string `json:"agent_id,omitempty"`

	// ActorUserID is the authenticated user causing the event (if any).
	ActorUserID string `json:"actor_user_id,omitempty"`

	Message  string `json:"message,omitempty"`
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeAdmissionRejected EventType = "admission_rejected"
	EventTypeCallCanceled      EventType = "call_canceled"
	EventTypeStatusChanged     EventType = "subscription_status_changed"
)

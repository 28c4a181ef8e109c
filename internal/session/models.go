package session

import "time"

// Participant is one leg of a call.
type Participant struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name,omitempty"`
	Company     string `json:"company,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Status is the call session state-machine value.
//
// Machine: pending -> in_progress -> {completed, failed, no_answer, voicemail}.
// A pending session may also move straight to failed (cancellation, or a
// fault before progression started). The four right-hand states are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNoAnswer   Status = "no_answer"
	StatusVoicemail  Status = "voicemail"
)

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNoAnswer, StatusVoicemail:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status tag.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusNoAnswer, StatusVoicemail:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the edge from -> to exists in the machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusFailed
	case StatusInProgress:
		return to.Terminal()
	default:
		// terminal states have no outgoing edges
		return false
	}
}

// AccelerationInfo is the optional compute-acceleration descriptor attached
// to a session by the execution pipeline.
type AccelerationInfo struct {
	Available     bool    `json:"available"`
	Backend       string  `json:"backend,omitempty"`
	SpeedupFactor float64 `json:"speedup_factor,omitempty"`
}

// CallSession is one unit of work in the calling agent.
//
// Lifecycle: created at call-request time with status pending, mutated only
// through the registry, immutable once archived.
type CallSession struct {
	ID string `json:"id"`

	Caller Participant `json:"caller"`
	Callee Participant `json:"callee"`

	CallType string `json:"call_type"`
	Purpose  string `json:"purpose"`

	Status Status `json:"status"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Duration is set when the session reaches a terminal state:
	// exactly EndedAt - StartedAt.
	Duration time.Duration `json:"duration"`

	Notes      string `json:"notes,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	NextAction string `json:"next_action,omitempty"`

	// AgentID is the owning digital agent.
	AgentID string `json:"agent_id"`

	// ClientID links the session to the admitted subscription, when any.
	ClientID string `json:"client_id,omitempty"`

	// Optional enrichment payloads. Absence means the enrichment was not
	// requested or degraded.
	ScriptInsight string            `json:"script_insight,omitempty"`
	Acceleration  *AccelerationInfo `json:"acceleration,omitempty"`

	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

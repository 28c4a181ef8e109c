package analytics

// GlobalMetrics aggregates every session known to the platform, active and
// archived. AverageDurationSeconds is only meaningful when
// AverageDurationDefined is true; an empty platform has no average.

type GlobalMetrics struct {
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`

	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	NoAnswer   int `json:"no_answer"`
	Voicemail  int `json:"voicemail"`

	// SuccessRate is completed over terminal sessions.
	SuccessRate float64 `json:"success_rate"`

	TotalDurationSeconds   float64 `json:"total_duration_seconds"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	AverageDurationDefined bool    `json:"average_duration_defined"`
}

// AgentMetrics aggregates the sessions handled by one agent, including how
// often each enrichment was actually applied.

type AgentMetrics struct {
	AgentID string `json:"agent_id"`

	TotalSessions int `json:"total_sessions"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`

	SuccessRate            float64 `json:"success_rate"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	AverageDurationDefined bool    `json:"average_duration_defined"`

	ScriptInsightSessions int `json:"script_insight_sessions"`
	AcceleratedSessions   int `json:"accelerated_sessions"`
}

// SubscriptionMetrics aggregates the client base by catalog entry plus the
// usage counters across all clients.

type SubscriptionMetrics struct {
	TotalClients  int `json:"total_clients"`
	ActiveClients int `json:"active_clients"`

	// ClientsByPlan is keyed by "<tier>/<complexity>".
	ClientsByPlan map[string]int `json:"clients_by_plan"`

	TotalCallsUsed              int `json:"total_calls_used"`
	TotalConsultationHoursUsed  int `json:"total_consultation_hours_used"`
	TotalSpecialistSessionsUsed int `json:"total_specialist_sessions_used"`
}

// Overview is the combined payload served by the analytics endpoint.

type Overview struct {
	Global        GlobalMetrics       `json:"global"`
	Subscriptions SubscriptionMetrics `json:"subscriptions"`
}

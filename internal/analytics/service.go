package analytics

import (
	"context"
	"errors"

	"callagent-platform/internal/pricing"
	"callagent-platform/internal/session"
	"callagent-platform/internal/subscription"
)

var ErrNoAgentSessions = errors.New("analytics: agent has no sessions")

// SessionSource reads the sessions to aggregate. Satisfied by
// session.Registry.
type SessionSource interface {
	ListActive(ctx context.Context) []session.CallSession
	ListHistory(ctx context.Context, filter session.Status, limit int) ([]session.CallSession, error)
}

// SubscriptionSource reads the client base. Satisfied by
// subscription.Service.
type SubscriptionSource interface {
	List(ctx context.Context) ([]subscription.Subscription, error)
}

// Service computes metrics at read time over registry and subscription
// snapshots. Nothing here mutates state and nothing is cached.
type Service struct {
	sessions SessionSource
	subs     SubscriptionSource
}

func NewService(sessions SessionSource, subs SubscriptionSource) *Service {
	return &Service{sessions: sessions, subs: subs}
}

func (s *Service) Global(ctx context.Context) (GlobalMetrics, error) {
	rows, err := s.allSessions(ctx)
	if err != nil {
		return GlobalMetrics{}, err
	}

	out := GlobalMetrics{}
	terminal := 0
	for _, c := range rows {
		out.TotalSessions++
		switch c.Status {
		case session.StatusPending:
			out.Pending++
			out.ActiveSessions++
		case session.StatusInProgress:
			out.InProgress++
			out.ActiveSessions++
		case session.StatusCompleted:
			out.Completed++
		case session.StatusFailed:
			out.Failed++
		case session.StatusNoAnswer:
			out.NoAnswer++
		case session.StatusVoicemail:
			out.Voicemail++
		}
		if c.Status.Terminal() {
			terminal++
			out.TotalDurationSeconds += c.Duration.Seconds()
		}
	}
	if terminal > 0 {
		out.SuccessRate = float64(out.Completed) / float64(terminal)
		out.AverageDurationSeconds = out.TotalDurationSeconds / float64(terminal)
		out.AverageDurationDefined = true
	}
	return out, nil
}

func (s *Service) Agent(ctx context.Context, agentID string) (AgentMetrics, error) {
	if agentID == "" {
		return AgentMetrics{}, ErrNoAgentSessions
	}
	rows, err := s.allSessions(ctx)
	if err != nil {
		return AgentMetrics{}, err
	}

	out := AgentMetrics{AgentID: agentID}
	terminal := 0
	totalDuration := 0.0
	for _, c := range rows {
		if c.AgentID != agentID {
			continue
		}
		out.TotalSessions++
		switch c.Status {
		case session.StatusCompleted:
			out.Completed++
		case session.StatusFailed:
			out.Failed++
		}
		if c.Status.Terminal() {
			terminal++
			totalDuration += c.Duration.Seconds()
		}
		if c.ScriptInsight != "" {
			out.ScriptInsightSessions++
		}
		if c.Acceleration != nil && c.Acceleration.Available {
			out.AcceleratedSessions++
		}
	}
	if out.TotalSessions == 0 {
		return AgentMetrics{}, ErrNoAgentSessions
	}
	if terminal > 0 {
		out.SuccessRate = float64(out.Completed) / float64(terminal)
		out.AverageDurationSeconds = totalDuration / float64(terminal)
		out.AverageDurationDefined = true
	}
	return out, nil
}

func (s *Service) Subscriptions(ctx context.Context) (SubscriptionMetrics, error) {
	subs, err := s.subs.List(ctx)
	if err != nil {
		return SubscriptionMetrics{}, err
	}

	out := SubscriptionMetrics{ClientsByPlan: map[string]int{}}
	for _, sub := range subs {
		out.TotalClients++
		if sub.Status == subscription.StatusActive {
			out.ActiveClients++
		}
		key := pricing.TierKey{Tier: sub.Tier, Complexity: sub.Complexity}
		out.ClientsByPlan[key.String()]++
		out.TotalCallsUsed += sub.CallsUsed
		out.TotalConsultationHoursUsed += sub.ConsultationHoursUsed
		out.TotalSpecialistSessionsUsed += sub.SpecialistSessionsUsed
	}
	return out, nil
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	g, err := s.Global(ctx)
	if err != nil {
		return Overview{}, err
	}
	sm, err := s.Subscriptions(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Global: g, Subscriptions: sm}, nil
}

func (s *Service) allSessions(ctx context.Context) ([]session.CallSession, error) {
	hist, err := s.sessions.ListHistory(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	return append(s.sessions.ListActive(ctx), hist...), nil
}

package analytics

import (
	"context"
	"testing"

	"callagent-platform/internal/pricing"
	"callagent-platform/internal/session"
	"callagent-platform/internal/subscription"
)

func newAnalytics(t *testing.T) (*Service, *session.Registry, *subscription.Service) {
	t.Helper()
	registry := session.NewRegistry(session.NewMemoryHistory())
	subs := subscription.NewService(pricing.NewCatalog(), subscription.NewMemoryRepo())
	return NewService(registry, subs), registry, subs
}

func seedSession(t *testing.T, r *session.Registry, id, agentID string, final session.Status) {
	t.Helper()
	if _, err := r.Create(context.Background(), session.CallSession{
		ID:      id,
		Caller:  session.Participant{PhoneNumber: "+15550001111"},
		Callee:  session.Participant{PhoneNumber: "+15550002222"},
		AgentID: agentID,
	}); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	if final == session.StatusPending {
		return
	}
	if _, err := r.Transition(context.Background(), id, session.StatusInProgress); err != nil {
		t.Fatalf("progress %s: %v", id, err)
	}
	if final == session.StatusInProgress {
		return
	}
	if _, err := r.Finish(context.Background(), id, final, ""); err != nil {
		t.Fatalf("finish %s: %v", id, err)
	}
}

func TestGlobal_CountsActiveAndArchived(t *testing.T) {
	svc, registry, _ := newAnalytics(t)

	seedSession(t, registry, "c1", "a1", session.StatusCompleted)
	seedSession(t, registry, "c2", "a1", session.StatusCompleted)
	seedSession(t, registry, "c3", "a2", session.StatusFailed)
	seedSession(t, registry, "c4", "a2", session.StatusNoAnswer)
	seedSession(t, registry, "c5", "a2", session.StatusInProgress)
	seedSession(t, registry, "c6", "a1", session.StatusPending)

	g, err := svc.Global(context.Background())
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	if g.TotalSessions != 6 || g.ActiveSessions != 2 {
		t.Fatalf("totals wrong: %+v", g)
	}
	if g.Completed != 2 || g.Failed != 1 || g.NoAnswer != 1 || g.InProgress != 1 || g.Pending != 1 {
		t.Fatalf("status breakdown wrong: %+v", g)
	}
	if g.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5 over terminal sessions, got %f", g.SuccessRate)
	}
	if !g.AverageDurationDefined {
		t.Fatalf("average must be defined with terminal sessions present")
	}
}

func TestGlobal_EmptyPlatformHasNoAverage(t *testing.T) {
	svc, _, _ := newAnalytics(t)

	g, err := svc.Global(context.Background())
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	if g.TotalSessions != 0 || g.AverageDurationDefined || g.SuccessRate != 0 {
		t.Fatalf("empty platform metrics wrong: %+v", g)
	}
}

func TestAgent_FiltersAndCountsEnrichments(t *testing.T) {
	svc, registry, _ := newAnalytics(t)

	seedSession(t, registry, "c1", "a1", session.StatusInProgress)
	if err := registry.AttachScriptInsight(context.Background(), "c1", "lead with the renewal discount"); err != nil {
		t.Fatalf("attach insight: %v", err)
	}
	if err := registry.AttachAcceleration(context.Background(), "c1", session.AccelerationInfo{Available: true, Backend: "sim"}); err != nil {
		t.Fatalf("attach acceleration: %v", err)
	}
	if _, err := registry.Finish(context.Background(), "c1", session.StatusCompleted, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}
	seedSession(t, registry, "c2", "a1", session.StatusFailed)
	seedSession(t, registry, "c3", "other-agent", session.StatusCompleted)

	m, err := svc.Agent(context.Background(), "a1")
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	if m.TotalSessions != 2 || m.Completed != 1 || m.Failed != 1 {
		t.Fatalf("agent breakdown wrong: %+v", m)
	}
	if m.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", m.SuccessRate)
	}
	if m.ScriptInsightSessions != 1 || m.AcceleratedSessions != 1 {
		t.Fatalf("enrichment counts wrong: %+v", m)
	}
}

func TestAgent_UnavailableAccelerationNotCounted(t *testing.T) {
	svc, registry, _ := newAnalytics(t)

	seedSession(t, registry, "c1", "a1", session.StatusInProgress)
	if err := registry.AttachAcceleration(context.Background(), "c1", session.AccelerationInfo{Available: false}); err != nil {
		t.Fatalf("attach acceleration: %v", err)
	}
	if _, err := registry.Finish(context.Background(), "c1", session.StatusCompleted, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}

	m, err := svc.Agent(context.Background(), "a1")
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	if m.AcceleratedSessions != 0 {
		t.Fatalf("unavailable acceleration counted: %+v", m)
	}
}

func TestAgent_NoSessions(t *testing.T) {
	svc, registry, _ := newAnalytics(t)
	seedSession(t, registry, "c1", "someone-else", session.StatusCompleted)

	if _, err := svc.Agent(context.Background(), "ghost"); err != ErrNoAgentSessions {
		t.Fatalf("expected ErrNoAgentSessions, got %v", err)
	}
	if _, err := svc.Agent(context.Background(), ""); err != ErrNoAgentSessions {
		t.Fatalf("expected ErrNoAgentSessions for empty id, got %v", err)
	}
}

func TestSubscriptions_GroupsByPlan(t *testing.T) {
	svc, _, subs := newAnalytics(t)

	open := func(clientID string, tier pricing.ServiceTier, cx pricing.Complexity) {
		t.Helper()
		if _, err := subs.Open(context.Background(), subscription.OpenRequest{
			ClientID:     clientID,
			CompanyName:  clientID + " inc",
			Tier:         tier,
			Complexity:   cx,
			SetupFeePaid: true,
		}); err != nil {
			t.Fatalf("open %s: %v", clientID, err)
		}
	}
	open("acme", pricing.TierDIY, pricing.ComplexityBasic)
	open("globex", pricing.TierDIY, pricing.ComplexityBasic)
	open("initech", pricing.TierDFY, pricing.ComplexityEnterprise)

	for i := 0; i < 3; i++ {
		if adm, err := subs.AdmitCall(context.Background(), "acme"); err != nil || !adm.Admitted {
			t.Fatalf("admit: %+v %v", adm, err)
		}
	}
	if _, err := subs.SetStatus(context.Background(), "globex", subscription.StatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	m, err := svc.Subscriptions(context.Background())
	if err != nil {
		t.Fatalf("subscriptions: %v", err)
	}
	if m.TotalClients != 3 || m.ActiveClients != 2 {
		t.Fatalf("client counts wrong: %+v", m)
	}
	if m.ClientsByPlan["diy/basic"] != 2 || m.ClientsByPlan["dfy/enterprise"] != 1 {
		t.Fatalf("plan grouping wrong: %+v", m.ClientsByPlan)
	}
	if m.TotalCallsUsed != 3 {
		t.Fatalf("usage rollup wrong: %+v", m)
	}
}

func TestOverview_CombinesSections(t *testing.T) {
	svc, registry, subs := newAnalytics(t)
	seedSession(t, registry, "c1", "a1", session.StatusCompleted)
	if _, err := subs.Open(context.Background(), subscription.OpenRequest{
		ClientID:     "acme",
		CompanyName:  "acme inc",
		Tier:         pricing.TierDIY,
		Complexity:   pricing.ComplexityBasic,
		SetupFeePaid: true,
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	o, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if o.Global.TotalSessions != 1 || o.Subscriptions.TotalClients != 1 {
		t.Fatalf("overview wrong: %+v", o)
	}
}

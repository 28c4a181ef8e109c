package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callagent-platform/internal/audit"
	"callagent-platform/internal/enrichment"
	"callagent-platform/internal/pricing"
	"callagent-platform/internal/session"
	"callagent-platform/internal/subscription"
)

type fixture struct {
	svc      *Service
	subs     *subscription.Service
	registry *session.Registry
	audit    *audit.MemoryRepo
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	subs := subscription.NewService(pricing.NewCatalog(), subscription.NewMemoryRepo())
	registry := session.NewRegistry(session.NewMemoryHistory())
	auditRepo := audit.NewMemoryRepo()
	if opts.Audit == nil {
		opts.Audit = audit.NewService(auditRepo)
	}
	return &fixture{
		svc:      NewService(subs, registry, opts),
		subs:     subs,
		registry: registry,
		audit:    auditRepo,
	}
}

func defaultOptions() Options {
	return Options{
		Optimizer:   enrichment.NewNarrativeOptimizer(),
		Accelerator: enrichment.NewStaticAccelerator(enrichment.Acceleration{Available: true, Backend: "sim", SpeedupFactor: 2}),
	}
}

func callRequest(clientID string) PlaceCallRequest {
	return PlaceCallRequest{
		To:                session.Participant{PhoneNumber: "+15550002222", Name: "Jordan"},
		From:              session.Participant{PhoneNumber: "+15550001111"},
		AgentID:           "agent-1",
		Purpose:           "renewal follow up",
		CallType:          "outbound",
		WantScriptInsight: true,
		WantAcceleration:  true,
		ClientID:          clientID,
	}
}

func openClient(t *testing.T, f *fixture, clientID string, setupPaid bool) {
	t.Helper()
	_, err := f.subs.Open(context.Background(), subscription.OpenRequest{
		ClientID:     clientID,
		CompanyName:  clientID + " inc",
		Tier:         pricing.TierDIY,
		Complexity:   pricing.ComplexityBasic,
		SetupFeePaid: setupPaid,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
}

func TestPlaceCall_SuccessArchivesCompletedSession(t *testing.T) {
	f := newFixture(t, defaultOptions())
	openClient(t, f, "acme", true)

	res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Success || res.CallID == "" {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.EnrichmentsApplied) != 2 {
		t.Fatalf("expected both enrichments, got %v", res.EnrichmentsApplied)
	}

	if f.registry.ActiveCount() != 0 {
		t.Fatalf("session left in active store")
	}
	s, err := f.registry.Get(context.Background(), res.CallID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Status != session.StatusCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}
	if s.ScriptInsight == "" || s.Acceleration == nil || !s.Acceleration.Available {
		t.Fatalf("expected enrichment payloads: %+v", s)
	}
	if s.EndedAt == nil || s.Duration != s.EndedAt.Sub(s.StartedAt) {
		t.Fatalf("duration invariant violated: %+v", s)
	}
	if res.Duration != s.Duration {
		t.Fatalf("result duration %v != session duration %v", res.Duration, s.Duration)
	}
}

func TestPlaceCall_WithoutClientSkipsAdmission(t *testing.T) {
	f := newFixture(t, defaultOptions())

	res, err := f.svc.PlaceCall(context.Background(), callRequest(""))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success without admission, got %+v", res)
	}
}

func TestPlaceCall_SetupFeeUnpaidCreatesNoSession(t *testing.T) {
	f := newFixture(t, defaultOptions())
	openClient(t, f, "acme", false)

	res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Success || res.RejectionReason != subscription.ReasonSetupFeeUnpaid {
		t.Fatalf("expected setup_fee_unpaid rejection, got %+v", res)
	}
	if res.CallID != "" {
		t.Fatalf("rejected call must not carry a session id")
	}
	if f.registry.ActiveCount() != 0 {
		t.Fatalf("no session should be active")
	}
	hist, err := f.registry.ListHistory(context.Background(), "", 0)
	if err != nil || len(hist) != 0 {
		t.Fatalf("no session should be archived: %v %v", hist, err)
	}

	st, err := f.subs.Status(context.Background(), "acme")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.CallsUsed != 0 {
		t.Fatalf("rejected call charged usage: %d", st.CallsUsed)
	}

	events := f.audit.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeAdmissionRejected {
		t.Fatalf("expected one admission_rejected audit event, got %+v", events)
	}
}

func TestPlaceCall_UnknownClientRejected(t *testing.T) {
	f := newFixture(t, defaultOptions())

	res, err := f.svc.PlaceCall(context.Background(), callRequest("ghost"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Success || res.RejectionReason != subscription.ReasonNoSubscription {
		t.Fatalf("expected no_subscription rejection, got %+v", res)
	}
}

func TestPlaceCall_QuotaExhaustedRejected(t *testing.T) {
	f := newFixture(t, defaultOptions())
	openClient(t, f, "acme", true)

	// burn the diy/basic quota without the pipeline
	for i := 0; i < 1000; i++ {
		if adm, err := f.subs.AdmitCall(context.Background(), "acme"); err != nil || !adm.Admitted {
			t.Fatalf("warmup admit #%d: %+v %v", i+1, adm, err)
		}
	}

	res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Success || res.RejectionReason != subscription.ReasonQuotaExceeded {
		t.Fatalf("expected quota_exceeded rejection, got %+v", res)
	}
}

func TestPlaceCall_OptimizerFailureIsNonFatal(t *testing.T) {
	opts := defaultOptions()
	opts.Optimizer = enrichment.OptimizerFunc(func(ctx context.Context, purpose, template string) (string, error) {
		return "", errors.New("upstream optimizer unavailable")
	})
	f := newFixture(t, opts)
	openClient(t, f, "acme", true)

	res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Success {
		t.Fatalf("optimizer failure must not fail the call: %+v", res)
	}
	for _, e := range res.EnrichmentsApplied {
		if e == EnrichmentScriptInsight {
			t.Fatalf("degraded enrichment reported as applied: %v", res.EnrichmentsApplied)
		}
	}
	s, err := f.registry.Get(context.Background(), res.CallID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.ScriptInsight != "" {
		t.Fatalf("degraded enrichment must be omitted, got %q", s.ScriptInsight)
	}
}

func TestPlaceCall_AcceleratorFailureRecordedAsUnavailable(t *testing.T) {
	opts := defaultOptions()
	opts.Accelerator = enrichment.AcceleratorFunc(func(ctx context.Context) (enrichment.Acceleration, error) {
		return enrichment.Acceleration{}, errors.New("probe timeout")
	})
	f := newFixture(t, opts)
	openClient(t, f, "acme", true)

	res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Success {
		t.Fatalf("accelerator failure must not fail the call: %+v", res)
	}
	s, err := f.registry.Get(context.Background(), res.CallID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Acceleration == nil || s.Acceleration.Available {
		t.Fatalf("expected acceleration recorded as unavailable, got %+v", s.Acceleration)
	}
	for _, e := range res.EnrichmentsApplied {
		if e == EnrichmentAcceleration {
			t.Fatalf("unavailable acceleration reported as applied")
		}
	}
}

func TestPlaceCall_FaultFailsAndArchivesSession(t *testing.T) {
	f := newFixture(t, Options{})
	openClient(t, f, "acme", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := callRequest("acme")
	req.WantScriptInsight = false
	req.WantAcceleration = false
	res, err := f.svc.PlaceCall(ctx, req)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Success {
		t.Fatalf("expected failed result, got %+v", res)
	}
	if res.CallID == "" {
		t.Fatalf("failed execution still creates a session")
	}

	if f.registry.ActiveCount() != 0 {
		t.Fatalf("failed session left in active store")
	}
	s, gerr := f.registry.Get(context.Background(), res.CallID)
	if gerr != nil {
		t.Fatalf("get: %v", gerr)
	}
	if s.Status != session.StatusFailed {
		t.Fatalf("expected failed, got %s", s.Status)
	}
	if s.Notes == "" {
		t.Fatalf("fault description must be recorded as notes")
	}

	// usage is charged for the admitted attempt even though it failed
	st, serr := f.subs.Status(context.Background(), "acme")
	if serr != nil {
		t.Fatalf("status: %v", serr)
	}
	if st.CallsUsed != 1 {
		t.Fatalf("expected admitted attempt to stay charged, got %d", st.CallsUsed)
	}
}

func TestCancel_FailsActiveSessionWithoutRefund(t *testing.T) {
	f := newFixture(t, defaultOptions())
	openClient(t, f, "acme", true)

	if adm, err := f.subs.AdmitCall(context.Background(), "acme"); err != nil || !adm.Admitted {
		t.Fatalf("admit: %+v %v", adm, err)
	}
	if _, err := f.registry.Create(context.Background(), session.CallSession{
		ID:       "c1",
		Caller:   session.Participant{PhoneNumber: "+15550001111"},
		Callee:   session.Participant{PhoneNumber: "+15550002222"},
		AgentID:  "agent-1",
		ClientID: "acme",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	s, err := f.svc.Cancel(context.Background(), "c1", "operator-9")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.Status != session.StatusFailed || s.ArchivedAt == nil {
		t.Fatalf("expected failed+archived, got %+v", s)
	}
	if f.registry.ActiveCount() != 0 {
		t.Fatalf("canceled session left active")
	}

	st, err := f.subs.Status(context.Background(), "acme")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.CallsUsed != 1 {
		t.Fatalf("cancellation must not refund usage, got %d", st.CallsUsed)
	}
}

func TestCancel_UnknownSession(t *testing.T) {
	f := newFixture(t, defaultOptions())
	if _, err := f.svc.Cancel(context.Background(), "ghost", "op"); err != session.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlaceCall_ConcurrentLastSlotAdmitsExactlyOne(t *testing.T) {
	f := newFixture(t, defaultOptions())
	openClient(t, f, "acme", true)
	for i := 0; i < 999; i++ {
		if adm, err := f.subs.AdmitCall(context.Background(), "acme"); err != nil || !adm.Admitted {
			t.Fatalf("warmup admit #%d: %+v %v", i+1, adm, err)
		}
	}

	results := make(chan Result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
			if err != nil {
				t.Errorf("place: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for res := range results {
		if res.Success {
			succeeded++
		} else if res.RejectionReason == subscription.ReasonQuotaExceeded {
			rejected++
		} else {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected one success and one quota rejection, got %d/%d", succeeded, rejected)
	}
}

func TestPlaceCall_ValidatesInput(t *testing.T) {
	f := newFixture(t, defaultOptions())
	req := callRequest("")
	req.AgentID = ""
	if _, err := f.svc.PlaceCall(context.Background(), req); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestProgress_HonorsDelay(t *testing.T) {
	f := newFixture(t, Options{ProgressDelay: 10 * time.Millisecond})
	openClient(t, f, "acme", true)

	start := time.Now()
	res, err := f.svc.PlaceCall(context.Background(), callRequest("acme"))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("progression delay not applied")
	}
}

package pipeline

import (
	"context"
	"errors"
	"time"

	"callagent-platform/internal/audit"
	"callagent-platform/internal/enrichment"
	"callagent-platform/internal/session"
	"callagent-platform/internal/subscription"
	"callagent-platform/pkg/logger"

	"github.com/google/uuid"
)

// Enrichment tags reported in Result.EnrichmentsApplied.
const (
	EnrichmentScriptInsight = "script_insight"
	EnrichmentAcceleration  = "acceleration"
)

var ErrInvalidRequest = errors.New("pipeline: invalid request")

// Service drives one call request end to end:
// admission -> session creation -> best-effort enrichment -> progression ->
// archival -> result.
//
// Failure semantics:
// - A rejected admission returns a rejected Result; no session is created.
// - Enrichment failures are logged and omitted; they never fail the call.
// - Any fault after session creation marks the session failed with the
//   fault recorded as notes. The session is always terminal and archived
//   before PlaceCall returns, whatever the outcome.
type Service struct {
	subs     *subscription.Service
	registry *session.Registry

	optimizer   enrichment.ScriptOptimizer
	accelerator enrichment.ComputeAccelerator
	audit       *audit.Service

	// progressDelay simulates call progression between in_progress and the
	// terminal state. It is a suspension point: cancellation during the
	// delay fails the call.
	progressDelay time.Duration

	newID func() string
}

// Options carries the optional collaborators.
type Options struct {
	Optimizer     enrichment.ScriptOptimizer
	Accelerator   enrichment.ComputeAccelerator
	Audit         *audit.Service
	ProgressDelay time.Duration
}

func NewService(subs *subscription.Service, registry *session.Registry, opts Options) *Service {
	return &Service{
		subs:          subs,
		registry:      registry,
		optimizer:     opts.Optimizer,
		accelerator:   opts.Accelerator,
		audit:         opts.Audit,
		progressDelay: opts.ProgressDelay,
		newID:         uuid.NewString,
	}
}

// PlaceCallRequest is one call request.
type PlaceCallRequest struct {
	To   session.Participant `json:"to"`
	From session.Participant `json:"from"`

	AgentID  string `json:"agent_id"`
	Purpose  string `json:"purpose"`
	CallType string `json:"call_type"`

	ScriptTemplate string `json:"script_template,omitempty"`

	WantScriptInsight bool `json:"want_script_insight"`
	WantAcceleration  bool `json:"want_acceleration"`

	// ClientID gates the request through subscription admission when set.
	ClientID string `json:"client_id,omitempty"`
}

// Result is the discriminated outcome of PlaceCall. Success false with a
// RejectionReason means admission denied the request; success false with a
// CallID means the session failed and was archived.
type Result struct {
	Success bool   `json:"success"`
	CallID  string `json:"call_id,omitempty"`
	Message string `json:"message"`

	RejectionReason subscription.RejectionReason `json:"rejection_reason,omitempty"`

	Duration           time.Duration `json:"duration"`
	EnrichmentsApplied []string      `json:"enrichments_applied"`
}

func (s *Service) PlaceCall(ctx context.Context, req PlaceCallRequest) (Result, error) {
	if req.To.PhoneNumber == "" || req.From.PhoneNumber == "" || req.AgentID == "" {
		return Result{}, ErrInvalidRequest
	}
	log := logger.From(ctx)

	if req.ClientID != "" {
		adm, err := s.subs.AdmitCall(ctx, req.ClientID)
		if err != nil {
			return Result{}, err
		}
		if !adm.Admitted {
			log.Info("call rejected", "client_id", req.ClientID, "reason", adm.Reason)
			if s.audit != nil {
				if aerr := s.audit.LogAdmissionRejected(ctx, req.ClientID, req.AgentID, string(adm.Reason)); aerr != nil {
					log.Warn("audit append failed", "err", aerr)
				}
			}
			return Result{
				Success:         false,
				Message:         rejectionMessage(adm.Reason),
				RejectionReason: adm.Reason,
			}, nil
		}
	}

	created, err := s.registry.Create(ctx, session.CallSession{
		ID:       s.newID(),
		Caller:   req.From,
		Callee:   req.To,
		CallType: req.CallType,
		Purpose:  req.Purpose,
		AgentID:  req.AgentID,
		ClientID: req.ClientID,
	})
	if err != nil {
		return Result{}, err
	}

	applied, execErr := s.execute(ctx, created.ID, req)
	if execErr != nil {
		finished, ferr := s.registry.Finish(ctx, created.ID, session.StatusFailed, execErr.Error())
		if ferr != nil {
			return Result{}, ferr
		}
		log.Warn("call failed", "call_id", created.ID, "err", execErr)
		return Result{
			Success:            false,
			CallID:             created.ID,
			Message:            execErr.Error(),
			Duration:           finished.Duration,
			EnrichmentsApplied: applied,
		}, nil
	}

	finished, err := s.registry.Finish(ctx, created.ID, session.StatusCompleted, "")
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success:            true,
		CallID:             created.ID,
		Message:            "call completed",
		Duration:           finished.Duration,
		EnrichmentsApplied: applied,
	}, nil
}

// execute runs enrichment and progression against an active session. The
// returned error means the session must be failed; enrichment errors are
// absorbed here.
func (s *Service) execute(ctx context.Context, id string, req PlaceCallRequest) ([]string, error) {
	log := logger.From(ctx)
	applied := []string{}

	if req.WantScriptInsight && s.optimizer != nil {
		insight, err := s.optimizer.Optimize(ctx, req.Purpose, req.ScriptTemplate)
		switch {
		case err != nil:
			log.Warn("script optimization degraded", "call_id", id, "err", err)
		case insight != "":
			if err := s.registry.AttachScriptInsight(ctx, id, insight); err != nil {
				return applied, err
			}
			applied = append(applied, EnrichmentScriptInsight)
		}
	}

	if req.WantAcceleration && s.accelerator != nil {
		info, err := s.accelerator.Probe(ctx)
		if err != nil {
			log.Warn("acceleration probe degraded", "call_id", id, "err", err)
			info = enrichment.Acceleration{}
		}
		if err := s.registry.AttachAcceleration(ctx, id, session.AccelerationInfo{
			Available:     info.Available,
			Backend:       info.Backend,
			SpeedupFactor: info.SpeedupFactor,
		}); err != nil {
			return applied, err
		}
		if info.Available {
			applied = append(applied, EnrichmentAcceleration)
		}
	}

	if _, err := s.registry.Transition(ctx, id, session.StatusInProgress); err != nil {
		return applied, err
	}
	if err := s.progress(ctx); err != nil {
		return applied, err
	}
	return applied, nil
}

// progress waits out the simulated call progression, honoring cancellation.
func (s *Service) progress(ctx context.Context) error {
	if s.progressDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.progressDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Cancel fails an active (pending or in-progress) session and archives it.
// Usage already recorded for the call is not refunded: billing reflects
// admitted attempts, not completed outcomes.
func (s *Service) Cancel(ctx context.Context, callID, actorUserID string) (session.CallSession, error) {
	if callID == "" {
		return session.CallSession{}, ErrInvalidRequest
	}
	finished, err := s.registry.Finish(ctx, callID, session.StatusFailed, "canceled by operator")
	if err != nil {
		return session.CallSession{}, err
	}
	if s.audit != nil {
		if aerr := s.audit.LogCallCanceled(ctx, callID, actorUserID); aerr != nil {
			logger.From(ctx).Warn("audit append failed", "err", aerr)
		}
	}
	return finished, nil
}

func rejectionMessage(reason subscription.RejectionReason) string {
	switch reason {
	case subscription.ReasonNoSubscription:
		return "no active subscription for client"
	case subscription.ReasonSetupFeeUnpaid:
		return "setup fee has not been paid"
	case subscription.ReasonQuotaExceeded:
		return "monthly call quota exhausted"
	default:
		return "call admission rejected"
	}
}

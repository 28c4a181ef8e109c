package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records audit events. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdmissionRejected records a denied call admission.
func (s *Service) LogAdmissionRejected(ctx context.Context, clientID, agentID, reason string) error {
	return s.Append(ctx, Event{
		Type:     EventTypeAdmissionRejected,
		ClientID: clientID,
		AgentID:  agentID,
		Message:  reason,
	})
}

// LogCallCanceled records an operator-initiated cancellation.
func (s *Service) LogCallCanceled(ctx context.Context, callID, actorUserID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallCanceled,
		CallID:      callID,
		ActorUserID: actorUserID,
		Message:     "call canceled",
	})
}

// LogStatusChanged records a subscription lifecycle transition.
func (s *Service) LogStatusChanged(ctx context.Context, clientID, actorUserID, newStatus string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeStatusChanged,
		ClientID:    clientID,
		ActorUserID: actorUserID,
		Message:     "status -> " + newStatus,
	})
}

// MemoryRepo is the in-process append-only event store.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events snapshots the recorded events (tests and diagnostics).
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

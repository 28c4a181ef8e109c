package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound          = errors.New("session: not found")
	ErrAlreadyExists     = errors.New("session: already exists")
	ErrInvalidTransition = errors.New("session: invalid transition")
	ErrNotTerminal       = errors.New("session: not in a terminal state")
	ErrInvalidSession    = errors.New("session: invalid session")
)

// HistoryStore is the persistence contract for archived sessions.
//
// Entries are immutable once appended; implementations never update or
// delete. List returns newest first.
type HistoryStore interface {
	Append(ctx context.Context, s CallSession) error
	Get(ctx context.Context, id string) (CallSession, bool, error)
	// List returns archived sessions newest first. filter == "" matches all
	// statuses; limit <= 0 means no limit.
	List(ctx context.Context, filter Status, limit int) ([]CallSession, error)
}

// Registry owns the active session store and enforces the state machine.
//
// Invariants:
// - a session is in exactly one of {active, history} at any instant
// - no active session is ever in a terminal state once Finish is used;
//   Transition+Archive callers must archive in the same logical step
// - archived sessions are immutable
//
// Synchronization is per session id; unrelated sessions never contend.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*entry

	history HistoryStore
	clock   func() time.Time
}

type entry struct {
	mu sync.Mutex
	s  CallSession

	// archived marks an entry already moved to history, so a goroutine that
	// raced for the lock cannot mutate a detached entry.
	archived bool
}

func NewRegistry(history HistoryStore) *Registry {
	return &Registry{
		active:  make(map[string]*entry),
		history: history,
		clock:   time.Now,
	}
}

// Create inserts a new session into the active store with status pending.
func (r *Registry) Create(ctx context.Context, s CallSession) (CallSession, error) {
	if s.ID == "" || s.AgentID == "" {
		return CallSession{}, ErrInvalidSession
	}
	s.Status = StatusPending
	if s.StartedAt.IsZero() {
		s.StartedAt = r.clock().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[s.ID]; ok {
		return CallSession{}, ErrAlreadyExists
	}
	if _, ok, err := r.history.Get(ctx, s.ID); err != nil {
		return CallSession{}, err
	} else if ok {
		return CallSession{}, ErrAlreadyExists
	}
	r.active[s.ID] = &entry{s: s}
	return s, nil
}

// Transition moves an active session along one state-machine edge. Reaching
// a terminal state stamps EndedAt and Duration.
func (r *Registry) Transition(ctx context.Context, id string, to Status) (CallSession, error) {
	_ = ctx
	if !to.Valid() {
		return CallSession{}, ErrInvalidTransition
	}
	e, err := r.lookupActive(id)
	if err != nil {
		return CallSession{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return r.transitionLocked(e, to)
}

func (r *Registry) transitionLocked(e *entry, to Status) (CallSession, error) {
	if e.archived {
		return CallSession{}, ErrNotFound
	}
	if !CanTransition(e.s.Status, to) {
		return CallSession{}, ErrInvalidTransition
	}
	e.s.Status = to
	if to.Terminal() {
		ended := r.clock().UTC()
		e.s.EndedAt = &ended
		e.s.Duration = ended.Sub(e.s.StartedAt)
	}
	return e.s, nil
}

// Annotate sets free-text fields on an active session. Empty arguments leave
// the corresponding field unchanged.
func (r *Registry) Annotate(ctx context.Context, id, notes, outcome, nextAction string) error {
	_ = ctx
	e, err := r.lookupActive(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.archived {
		return ErrNotFound
	}
	if notes != "" {
		e.s.Notes = notes
	}
	if outcome != "" {
		e.s.Outcome = outcome
	}
	if nextAction != "" {
		e.s.NextAction = nextAction
	}
	return nil
}

// AttachScriptInsight records the script-optimizer payload on an active session.
func (r *Registry) AttachScriptInsight(ctx context.Context, id, insight string) error {
	_ = ctx
	e, err := r.lookupActive(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.archived {
		return ErrNotFound
	}
	e.s.ScriptInsight = insight
	return nil
}

// AttachAcceleration records the compute-accelerator descriptor on an active session.
func (r *Registry) AttachAcceleration(ctx context.Context, id string, info AccelerationInfo) error {
	_ = ctx
	e, err := r.lookupActive(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.archived {
		return ErrNotFound
	}
	e.s.Acceleration = &info
	return nil
}

// Archive moves a terminal session from the active store to history.
func (r *Registry) Archive(ctx context.Context, id string) (CallSession, error) {
	e, err := r.lookupActive(id)
	if err != nil {
		return CallSession{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return r.archiveLocked(ctx, id, e)
}

func (r *Registry) archiveLocked(ctx context.Context, id string, e *entry) (CallSession, error) {
	if e.archived {
		return CallSession{}, ErrNotFound
	}
	if !e.s.Status.Terminal() {
		return CallSession{}, ErrNotTerminal
	}
	archived := r.clock().UTC()
	e.s.ArchivedAt = &archived

	if err := r.history.Append(ctx, e.s); err != nil {
		e.s.ArchivedAt = nil
		return CallSession{}, err
	}
	e.archived = true

	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
	return e.s, nil
}

// Finish transitions an active session to a terminal state and archives it
// in one step under the session lock, so the session is never observable as
// active-and-terminal.
func (r *Registry) Finish(ctx context.Context, id string, to Status, notes string) (CallSession, error) {
	if !to.Terminal() {
		return CallSession{}, ErrInvalidTransition
	}
	e, err := r.lookupActive(id)
	if err != nil {
		return CallSession{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := r.transitionLocked(e, to); err != nil {
		return CallSession{}, err
	}
	if notes != "" {
		e.s.Notes = notes
	}
	return r.archiveLocked(ctx, id, e)
}

// Get returns a session from the active store or, failing that, history.
func (r *Registry) Get(ctx context.Context, id string) (CallSession, error) {
	r.mu.RLock()
	e, ok := r.active[id]
	r.mu.RUnlock()
	if ok {
		e.mu.Lock()
		s := e.s
		e.mu.Unlock()
		return s, nil
	}

	s, ok, err := r.history.Get(ctx, id)
	if err != nil {
		return CallSession{}, err
	}
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return s, nil
}

// ListHistory returns archived sessions newest first.
func (r *Registry) ListHistory(ctx context.Context, filter Status, limit int) ([]CallSession, error) {
	return r.history.List(ctx, filter, limit)
}

// ListActive snapshots the active store.
func (r *Registry) ListActive(ctx context.Context) []CallSession {
	_ = ctx
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]CallSession, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.s)
		e.mu.Unlock()
	}
	return out
}

// ActiveCount returns the number of active sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

func (r *Registry) lookupActive(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.active[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

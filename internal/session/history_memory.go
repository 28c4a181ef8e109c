package session

import (
	"context"
	"sync"
)

// MemoryHistory is the in-process HistoryStore. It is the reference
// implementation; swap in RedisHistory for a shared back-end.
type MemoryHistory struct {
	mu   sync.RWMutex
	byID map[string]CallSession
	// order holds ids oldest first; List walks it backwards.
	order []string
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{byID: make(map[string]CallSession)}
}

func (h *MemoryHistory) Append(ctx context.Context, s CallSession) error {
	_ = ctx
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byID[s.ID]; ok {
		return ErrAlreadyExists
	}
	h.byID[s.ID] = s
	h.order = append(h.order, s.ID)
	return nil
}

func (h *MemoryHistory) Get(ctx context.Context, id string) (CallSession, bool, error) {
	_ = ctx
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.byID[id]
	return s, ok, nil
}

func (h *MemoryHistory) List(ctx context.Context, filter Status, limit int) ([]CallSession, error) {
	_ = ctx
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]CallSession, 0)
	for i := len(h.order) - 1; i >= 0; i-- {
		s := h.byID[h.order[i]]
		if filter != "" && s.Status != filter {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

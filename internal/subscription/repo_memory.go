package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is the in-process Repository. Admission is serialized with a
// per-client mutex so unrelated clients never contend.
type MemoryRepo struct {
	mu   sync.RWMutex
	subs map[string]*memoryRow
}

type memoryRow struct {
	mu  sync.Mutex
	sub Subscription
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{subs: make(map[string]*memoryRow)}
}

func (r *MemoryRepo) Insert(ctx context.Context, sub Subscription) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ClientID]; ok {
		return ErrDuplicateClient
	}
	r.subs[sub.ClientID] = &memoryRow{sub: sub}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, clientID string, now time.Time) (Subscription, bool, error) {
	_ = ctx
	row, ok := r.row(clientID)
	if !ok {
		return Subscription{}, false, nil
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if rollPeriod(&row.sub, now) {
		row.sub.UpdatedAt = now
	}
	return row.sub, true, nil
}

func (r *MemoryRepo) List(ctx context.Context, now time.Time) ([]Subscription, error) {
	_ = ctx
	r.mu.RLock()
	rows := make([]*memoryRow, 0, len(r.subs))
	for _, row := range r.subs {
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	out := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		row.mu.Lock()
		if rollPeriod(&row.sub, now) {
			row.sub.UpdatedAt = now
		}
		out = append(out, row.sub)
		row.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *MemoryRepo) Admit(ctx context.Context, clientID string, quota int, now time.Time) (Admission, error) {
	_ = ctx
	row, ok := r.row(clientID)
	if !ok {
		return Admission{Reason: ReasonNoSubscription}, nil
	}

	row.mu.Lock()
	defer row.mu.Unlock()

	if rollPeriod(&row.sub, now) {
		row.sub.UpdatedAt = now
	}

	adm := Admission{CallsUsed: row.sub.CallsUsed, IncludedCalls: quota}
	if row.sub.Status != StatusActive {
		adm.Reason = ReasonNoSubscription
		return adm, nil
	}
	if !row.sub.SetupFeePaid {
		adm.Reason = ReasonSetupFeeUnpaid
		return adm, nil
	}
	if row.sub.CallsUsed >= quota {
		adm.Reason = ReasonQuotaExceeded
		return adm, nil
	}

	row.sub.CallsUsed++
	row.sub.UpdatedAt = now
	adm.Admitted = true
	adm.CallsUsed = row.sub.CallsUsed
	return adm, nil
}

func (r *MemoryRepo) RecordConsultation(ctx context.Context, clientID string, hours int, now time.Time) (Subscription, error) {
	_ = ctx
	row, ok := r.row(clientID)
	if !ok {
		return Subscription{}, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	rollPeriod(&row.sub, now)
	row.sub.ConsultationHoursUsed += hours
	row.sub.UpdatedAt = now
	return row.sub, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, clientID string, status Status, now time.Time) (Subscription, error) {
	_ = ctx
	row, ok := r.row(clientID)
	if !ok {
		return Subscription{}, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	rollPeriod(&row.sub, now)
	row.sub.Status = status
	if status == StatusCanceled && row.sub.EndAt == nil {
		ended := now
		row.sub.EndAt = &ended
	}
	row.sub.UpdatedAt = now
	return row.sub, nil
}

func (r *MemoryRepo) row(clientID string) (*memoryRow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.subs[clientID]
	return row, ok
}

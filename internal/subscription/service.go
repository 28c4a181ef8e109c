package subscription

import (
	"context"
	"strings"
	"time"

	"callagent-platform/internal/pricing"
)

// Service is the subscription/quota manager.
//
// Contract:
// - Open validates the tier key against the catalog and never overwrites an
//   existing client.
// - AdmitCall is the only way usage is charged for a call; the quota
//   invariant calls_used <= included_calls holds under concurrency because
//   the repository serializes the check-and-increment per client.
// - Admission policy is a hard cap: once the quota is exhausted the call is
//   rejected. Overage pricing only feeds Quote estimates.
type Service struct {
	catalog *pricing.Catalog
	repo    Repository
	clock   func() time.Time
}

func NewService(catalog *pricing.Catalog, repo Repository) *Service {
	return &Service{catalog: catalog, repo: repo, clock: time.Now}
}

// OpenRequest creates a subscription for a new client.
type OpenRequest struct {
	ClientID     string              `json:"client_id"`
	CompanyName  string              `json:"company_name"`
	Tier         pricing.ServiceTier `json:"tier"`
	Complexity   pricing.Complexity  `json:"complexity"`
	SetupFeePaid bool                `json:"setup_fee_paid"`
}

func (s *Service) Open(ctx context.Context, req OpenRequest) (Subscription, error) {
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.CompanyName) == "" {
		return Subscription{}, ErrInvalidArgument
	}
	if _, err := s.catalog.Lookup(req.Tier, req.Complexity); err != nil {
		return Subscription{}, err
	}

	now := s.clock().UTC()
	sub := Subscription{
		ClientID:          req.ClientID,
		CompanyName:       req.CompanyName,
		Tier:              req.Tier,
		Complexity:        req.Complexity,
		StartAt:           now,
		SetupFeePaid:      req.SetupFeePaid,
		PeriodStart:       now,
		IntegrationStatus: IntegrationPending,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// Quote is a pure pricing calculation; it touches no subscription state.
// estimatedCalls <= 0 means no volume estimate was provided.
func (s *Service) Quote(tier pricing.ServiceTier, complexity pricing.Complexity, estimatedCalls int) (Quote, error) {
	t, err := s.catalog.Lookup(tier, complexity)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Tier:                t.Tier,
		Complexity:          t.Complexity,
		MonthlyPriceMinor:   t.MonthlyPriceMinor,
		SetupFeeMinor:       t.SetupFeeMinor,
		IncludedCalls:       t.IncludedCallsPerMonth,
		OveragePerCallMinor: t.OveragePerCallMinor,
	}
	if estimatedCalls > 0 {
		q.EstimatedCalls = estimatedCalls
		if estimatedCalls > t.IncludedCallsPerMonth {
			extra := int64(estimatedCalls - t.IncludedCallsPerMonth)
			q.OverageCostMinor = extra * t.OveragePerCallMinor
		}
		q.EstimatedMonthlyCostMinor = t.MonthlyPriceMinor + q.OverageCostMinor
	}
	return q, nil
}

// AdmitCall atomically admits one call against the client's quota. A
// rejected admission is a business outcome, not an error.
func (s *Service) AdmitCall(ctx context.Context, clientID string) (Admission, error) {
	if clientID == "" {
		return Admission{}, ErrInvalidArgument
	}
	now := s.clock().UTC()

	// The tier key never changes after Open, so reading it outside the
	// admission critical section is safe.
	sub, ok, err := s.repo.Get(ctx, clientID, now)
	if err != nil {
		return Admission{}, err
	}
	if !ok {
		return Admission{Reason: ReasonNoSubscription}, nil
	}
	t, err := s.catalog.Lookup(sub.Tier, sub.Complexity)
	if err != nil {
		return Admission{}, err
	}

	return s.repo.Admit(ctx, clientID, t.IncludedCallsPerMonth, now)
}

// Status returns the usage snapshot for a client.
func (s *Service) Status(ctx context.Context, clientID string) (UsageSnapshot, error) {
	if clientID == "" {
		return UsageSnapshot{}, ErrInvalidArgument
	}
	sub, ok, err := s.repo.Get(ctx, clientID, s.clock().UTC())
	if err != nil {
		return UsageSnapshot{}, err
	}
	if !ok {
		return UsageSnapshot{}, ErrNotFound
	}
	t, err := s.catalog.Lookup(sub.Tier, sub.Complexity)
	if err != nil {
		return UsageSnapshot{}, err
	}
	return snapshot(sub, t), nil
}

// SetStatus applies a lifecycle transition (active/paused/canceled).
func (s *Service) SetStatus(ctx context.Context, clientID string, status Status) (Subscription, error) {
	if clientID == "" || !status.Valid() {
		return Subscription{}, ErrInvalidArgument
	}
	return s.repo.SetStatus(ctx, clientID, status, s.clock().UTC())
}

// RecordConsultation charges consultation hours against the current period.
func (s *Service) RecordConsultation(ctx context.Context, clientID string, hours int) (Subscription, error) {
	if clientID == "" || hours <= 0 {
		return Subscription{}, ErrInvalidArgument
	}
	return s.repo.RecordConsultation(ctx, clientID, hours, s.clock().UTC())
}

// List snapshots all subscriptions (analytics read path).
func (s *Service) List(ctx context.Context) ([]Subscription, error) {
	return s.repo.List(ctx, s.clock().UTC())
}

func snapshot(sub Subscription, t pricing.Tier) UsageSnapshot {
	callsRemaining := t.IncludedCallsPerMonth - sub.CallsUsed
	if callsRemaining < 0 {
		callsRemaining = 0
	}
	hoursRemaining := t.ConsultationHours - sub.ConsultationHoursUsed
	if hoursRemaining < 0 {
		hoursRemaining = 0
	}
	return UsageSnapshot{
		ClientID:                   sub.ClientID,
		CompanyName:                sub.CompanyName,
		Tier:                       sub.Tier,
		Complexity:                 sub.Complexity,
		Status:                     sub.Status,
		SetupFeePaid:               sub.SetupFeePaid,
		MonthlyFeePaid:             sub.MonthlyFeePaid,
		PeriodStart:                sub.PeriodStart,
		CallsUsed:                  sub.CallsUsed,
		IncludedCalls:              t.IncludedCallsPerMonth,
		CallsRemaining:             callsRemaining,
		ConsultationHoursUsed:      sub.ConsultationHoursUsed,
		ConsultationHoursIncluded:  t.ConsultationHours,
		ConsultationHoursRemaining: hoursRemaining,
		SpecialistSessionsUsed:     sub.SpecialistSessionsUsed,
		CustomBuilds:               sub.CustomBuilds,
		IntegrationStatus:          sub.IntegrationStatus,
	}
}

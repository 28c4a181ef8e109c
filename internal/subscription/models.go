package subscription

import (
	"time"

	"callagent-platform/internal/pricing"
)

// Status is the subscription lifecycle tag. Subscriptions are never deleted,
// only status-transitioned.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCanceled:
		return true
	default:
		return false
	}
}

// IntegrationStatus tracks onboarding of the client's CRM/stack.
type IntegrationStatus string

const (
	IntegrationPending    IntegrationStatus = "pending"
	IntegrationInProgress IntegrationStatus = "in_progress"
	IntegrationCompleted  IntegrationStatus = "completed"
)

// Subscription is one client's entitlement record.
//
// Invariants:
// - CallsUsed never exceeds the included quota of the referenced tier
//   (enforced by Repository.Admit under per-client serialization)
// - the tier is referenced by (Tier, Complexity) key; tier fields are never
//   copied here
type Subscription struct {
	ClientID    string `json:"client_id"`
	CompanyName string `json:"company_name"`

	Tier       pricing.ServiceTier `json:"tier"`
	Complexity pricing.Complexity  `json:"complexity"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	SetupFeePaid   bool `json:"setup_fee_paid"`
	MonthlyFeePaid bool `json:"monthly_fee_paid"`

	// PeriodStart anchors the current billing period. Monthly counters are
	// reset lazily when an operation observes PeriodStart + 1 month in the
	// past (see rollPeriod).
	PeriodStart time.Time `json:"period_start"`

	CallsUsed              int `json:"calls_used_this_month"`
	ConsultationHoursUsed  int `json:"consultation_hours_used"`
	SpecialistSessionsUsed int `json:"specialist_sessions_used"`

	// CustomBuilds is cumulative; it does not reset with the period.
	CustomBuilds int `json:"custom_builds"`

	IntegrationStatus IntegrationStatus `json:"integration_status"`
	Status            Status            `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// rollPeriod advances PeriodStart to the current billing period and resets
// the monthly counters. Returns true when a rollover happened.
func rollPeriod(sub *Subscription, now time.Time) bool {
	if sub.PeriodStart.IsZero() {
		sub.PeriodStart = now
		return false
	}
	rolled := false
	for !now.Before(sub.PeriodStart.AddDate(0, 1, 0)) {
		sub.PeriodStart = sub.PeriodStart.AddDate(0, 1, 0)
		rolled = true
	}
	if rolled {
		sub.CallsUsed = 0
		sub.ConsultationHoursUsed = 0
		sub.SpecialistSessionsUsed = 0
	}
	return rolled
}

// RejectionReason explains a denied call admission.
type RejectionReason string

const (
	ReasonNoSubscription RejectionReason = "no_subscription"
	ReasonSetupFeeUnpaid RejectionReason = "setup_fee_unpaid"
	ReasonQuotaExceeded  RejectionReason = "quota_exceeded"
)

// Admission is the outcome of the atomic admit-and-increment. Rejection is
// an expected business condition, not an error.
type Admission struct {
	Admitted bool            `json:"admitted"`
	Reason   RejectionReason `json:"reason,omitempty"`

	CallsUsed     int `json:"calls_used"`
	IncludedCalls int `json:"included_calls"`
}

// UsageSnapshot is the read model returned by Service.Status.
type UsageSnapshot struct {
	ClientID    string              `json:"client_id"`
	CompanyName string              `json:"company_name"`
	Tier        pricing.ServiceTier `json:"tier"`
	Complexity  pricing.Complexity  `json:"complexity"`
	Status      Status              `json:"status"`

	SetupFeePaid   bool `json:"setup_fee_paid"`
	MonthlyFeePaid bool `json:"monthly_fee_paid"`

	PeriodStart time.Time `json:"period_start"`

	CallsUsed      int `json:"calls_used_this_month"`
	IncludedCalls  int `json:"included_calls_per_month"`
	CallsRemaining int `json:"calls_remaining"`

	ConsultationHoursUsed      int `json:"consultation_hours_used"`
	ConsultationHoursIncluded  int `json:"consultation_hours_included"`
	ConsultationHoursRemaining int `json:"consultation_hours_remaining"`

	SpecialistSessionsUsed int `json:"specialist_sessions_used"`
	CustomBuilds           int `json:"custom_builds"`

	IntegrationStatus IntegrationStatus `json:"integration_status"`
}

// Quote is the pricing breakdown for a prospective subscription.
// Amounts are minor units. Estimated fields are zero unless EstimatedCalls
// was provided.
type Quote struct {
	Tier       pricing.ServiceTier `json:"tier"`
	Complexity pricing.Complexity  `json:"complexity"`

	MonthlyPriceMinor   int64 `json:"monthly_price_minor"`
	SetupFeeMinor       int64 `json:"setup_fee_minor"`
	IncludedCalls       int   `json:"included_calls"`
	OveragePerCallMinor int64 `json:"overage_per_call_minor"`

	EstimatedCalls            int   `json:"estimated_calls,omitempty"`
	OverageCostMinor          int64 `json:"overage_cost_minor"`
	EstimatedMonthlyCostMinor int64 `json:"estimated_monthly_cost_minor,omitempty"`
}

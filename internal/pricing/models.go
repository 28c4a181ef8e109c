package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// Amounts are expressed in minor units (e.g., cents) using int64.

// ServiceTier selects who operates the calling agent: the client (DIY)
// or the platform on the client's behalf (DFY).
type ServiceTier string

const (
	TierDIY ServiceTier = "diy"
	TierDFY ServiceTier = "dfy"
)

// Complexity selects the scale of the client's call operation.
type Complexity string

const (
	ComplexityBasic      Complexity = "basic"
	ComplexityStandard   Complexity = "standard"
	ComplexityEnterprise Complexity = "enterprise"
)

// TierKey identifies a catalog entry. Subscriptions reference tiers by this
// key only; tier fields are never copied onto a subscription.
type TierKey struct {
	Tier       ServiceTier `json:"tier"`
	Complexity Complexity  `json:"complexity"`
}

func (k TierKey) String() string {
	return string(k.Tier) + "/" + string(k.Complexity)
}

// Tier is one immutable catalog entry.
type Tier struct {
	Tier       ServiceTier `json:"tier"`
	Complexity Complexity  `json:"complexity"`

	MonthlyPriceMinor int64 `json:"monthly_price_minor"`
	SetupFeeMinor     int64 `json:"setup_fee_minor"`

	// IncludedCallsPerMonth is the admission quota per billing period.
	IncludedCallsPerMonth int `json:"included_calls_per_month"`

	// OveragePerCallMinor is the per-call price past the included quota.
	// Admission currently hard-caps at the quota; this rate is used for
	// quote estimates only (see subscription.Service.Quote).
	OveragePerCallMinor int64 `json:"overage_per_call_minor"`

	Features          []string `json:"features"`
	ConsultationHours int      `json:"consultation_hours"`

	PrioritySupport     bool `json:"priority_support"`
	DedicatedSpecialist bool `json:"dedicated_specialist"`
}

func (t Tier) Key() TierKey {
	return TierKey{Tier: t.Tier, Complexity: t.Complexity}
}

var (
	ErrTierNotFound      = errors.New("pricing: tier not found")
	ErrInvalidTier       = errors.New("pricing: invalid service tier")
	ErrInvalidComplexity = errors.New("pricing: invalid complexity")
)

// ParseServiceTier normalizes and validates a tier tag from external input.
func ParseServiceTier(s string) (ServiceTier, error) {
	switch ServiceTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierDIY:
		return TierDIY, nil
	case TierDFY:
		return TierDFY, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
}

// ParseComplexity normalizes and validates a complexity tag from external input.
func ParseComplexity(s string) (Complexity, error) {
	switch Complexity(strings.ToLower(strings.TrimSpace(s))) {
	case ComplexityBasic:
		return ComplexityBasic, nil
	case ComplexityStandard:
		return ComplexityStandard, nil
	case ComplexityEnterprise:
		return ComplexityEnterprise, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidComplexity, s)
	}
}

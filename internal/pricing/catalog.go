package pricing

// Catalog is the read-only tier registry.
//
// Contract:
// - Seeded once at construction; no mutation afterwards.
// - Lookup/List have no side effects and are safe for concurrent use.
type Catalog struct {
	tiers map[TierKey]Tier
	order []TierKey
}

// NewCatalog builds the standard six-tier catalog (DIY/DFY x basic/standard/enterprise).
func NewCatalog() *Catalog {
	c := &Catalog{tiers: make(map[TierKey]Tier)}
	for _, t := range defaultTiers() {
		c.tiers[t.Key()] = t
		c.order = append(c.order, t.Key())
	}
	return c
}

// Lookup returns the tier for a (tier, complexity) key.
func (c *Catalog) Lookup(tier ServiceTier, complexity Complexity) (Tier, error) {
	t, ok := c.tiers[TierKey{Tier: tier, Complexity: complexity}]
	if !ok {
		return Tier{}, ErrTierNotFound
	}
	return t, nil
}

// List returns all tiers in catalog order.
func (c *Catalog) List() []Tier {
	out := make([]Tier, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.tiers[k])
	}
	return out
}

func defaultTiers() []Tier {
	return []Tier{
		{
			Tier:                  TierDIY,
			Complexity:            ComplexityBasic,
			MonthlyPriceMinor:     29700,
			SetupFeeMinor:         9900,
			IncludedCallsPerMonth: 1000,
			OveragePerCallMinor:   50,
			Features: []string{
				"outbound calling agent",
				"call history and outcomes",
				"email support",
			},
			ConsultationHours: 2,
		},
		{
			Tier:                  TierDIY,
			Complexity:            ComplexityStandard,
			MonthlyPriceMinor:     59700,
			SetupFeeMinor:         19900,
			IncludedCallsPerMonth: 2500,
			OveragePerCallMinor:   40,
			Features: []string{
				"outbound calling agent",
				"call history and outcomes",
				"script optimization",
				"priority email support",
			},
			ConsultationHours: 5,
			PrioritySupport:   true,
		},
		{
			Tier:                  TierDIY,
			Complexity:            ComplexityEnterprise,
			MonthlyPriceMinor:     99700,
			SetupFeeMinor:         49900,
			IncludedCallsPerMonth: 6000,
			OveragePerCallMinor:   35,
			Features: []string{
				"outbound calling agent",
				"call history and outcomes",
				"script optimization",
				"compute acceleration",
				"priority support",
			},
			ConsultationHours: 10,
			PrioritySupport:   true,
		},
		{
			Tier:                  TierDFY,
			Complexity:            ComplexityBasic,
			MonthlyPriceMinor:     99700,
			SetupFeeMinor:         99700,
			IncludedCallsPerMonth: 1500,
			OveragePerCallMinor:   45,
			Features: []string{
				"managed calling agent",
				"campaign setup",
				"call history and outcomes",
				"email support",
			},
			ConsultationHours: 4,
		},
		{
			Tier:                  TierDFY,
			Complexity:            ComplexityStandard,
			MonthlyPriceMinor:     199700,
			SetupFeeMinor:         149900,
			IncludedCallsPerMonth: 3000,
			OveragePerCallMinor:   35,
			Features: []string{
				"managed calling agent",
				"campaign setup",
				"script optimization",
				"call history and outcomes",
				"priority support",
			},
			ConsultationHours: 8,
			PrioritySupport:   true,
		},
		{
			Tier:                  TierDFY,
			Complexity:            ComplexityEnterprise,
			MonthlyPriceMinor:     499700,
			SetupFeeMinor:         249900,
			IncludedCallsPerMonth: 5000,
			OveragePerCallMinor:   30,
			Features: []string{
				"managed calling agent",
				"campaign setup",
				"script optimization",
				"compute acceleration",
				"dedicated specialist",
				"priority support",
			},
			ConsultationHours:   20,
			PrioritySupport:     true,
			DedicatedSpecialist: true,
		},
	}
}

package pricing

import "testing"

func TestCatalog_LookupAllKeys(t *testing.T) {
	c := NewCatalog()

	for _, tier := range []ServiceTier{TierDIY, TierDFY} {
		for _, cx := range []Complexity{ComplexityBasic, ComplexityStandard, ComplexityEnterprise} {
			got, err := c.Lookup(tier, cx)
			if err != nil {
				t.Fatalf("lookup %s/%s: %v", tier, cx, err)
			}
			if got.Tier != tier || got.Complexity != cx {
				t.Fatalf("lookup %s/%s returned %s/%s", tier, cx, got.Tier, got.Complexity)
			}
			if got.MonthlyPriceMinor <= 0 || got.IncludedCallsPerMonth <= 0 || got.OveragePerCallMinor <= 0 {
				t.Fatalf("tier %s/%s has non-positive economics: %+v", tier, cx, got)
			}
		}
	}
}

func TestCatalog_LookupUnknownKey(t *testing.T) {
	c := NewCatalog()
	if _, err := c.Lookup("managed", ComplexityBasic); err != ErrTierNotFound {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}

func TestCatalog_ListReturnsAllTiers(t *testing.T) {
	c := NewCatalog()
	tiers := c.List()
	if len(tiers) != 6 {
		t.Fatalf("expected 6 tiers, got %d", len(tiers))
	}

	seen := map[TierKey]bool{}
	for _, tr := range tiers {
		if seen[tr.Key()] {
			t.Fatalf("duplicate tier key %s", tr.Key())
		}
		seen[tr.Key()] = true
	}
}

func TestParseServiceTier(t *testing.T) {
	if got, err := ParseServiceTier(" DFY "); err != nil || got != TierDFY {
		t.Fatalf("expected dfy, got %q err %v", got, err)
	}
	if _, err := ParseServiceTier("premium"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestParseComplexity(t *testing.T) {
	if got, err := ParseComplexity("Enterprise"); err != nil || got != ComplexityEnterprise {
		t.Fatalf("expected enterprise, got %q err %v", got, err)
	}
	if _, err := ParseComplexity("ultra"); err == nil {
		t.Fatalf("expected error for unknown complexity")
	}
}

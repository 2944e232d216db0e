package profile

// Criteria filters profiles.
type Criteria struct {
	ChannelSource    string
	MinCompleteness  float64
	PriceSensitivity PriceSensitivity
	MinUrgency       int
	BudgetRange      BudgetRange
	MotivationType   MotivationType
	SkillLevel       SkillLevel
	Limit            int
	Offset           int
}

// Normalize clamps paging and drops out-of-range bounds.
func (c Criteria) Normalize() Criteria {
	if c.Limit <= 0 {
		c.Limit = 100
	}
	if c.Limit > 500 {
		c.Limit = 500
	}
	if c.Offset < 0 {
		c.Offset = 0
	}
	if c.MinCompleteness < 0 {
		c.MinCompleteness = 0
	}
	return c
}

// HighCompleteness is the score from which a profile counts as well known.
const HighCompleteness = 0.7

// Stats summarizes all live profiles.
type Stats struct {
	Total               int            `json:"total_profiles"`
	AverageCompleteness float64        `json:"average_completeness"`
	HighCompleteness    int            `json:"high_completeness_profiles"`
	ByPriceSensitivity  map[string]int `json:"price_sensitivity_distribution"`
}

// PricingFactors are the profile facts that shape discount decisions.
type PricingFactors struct {
	PriceSensitivity PriceSensitivity `json:"price_sensitivity,omitempty"`
	BudgetRange      BudgetRange      `json:"budget_range,omitempty"`
	UrgencyLevel     int              `json:"urgency_level"`
	DiscountResponse DiscountResponse `json:"discount_response,omitempty"`
	PaidOrders       int              `json:"paid_orders"`
	IsNewUser        bool             `json:"is_new_user"`
	HasProfile       bool             `json:"has_profile"`
}

// FactorsFor derives pricing factors. p may be nil when the user has no profile.
func FactorsFor(p *Profile, paidOrders int) PricingFactors {
	f := PricingFactors{PaidOrders: paidOrders, IsNewUser: paidOrders == 0}
	if p == nil {
		return f
	}
	d := p.s.Dimensions
	f.HasProfile = true
	f.PriceSensitivity = d.PriceSensitivity
	f.BudgetRange = d.BudgetRange
	f.UrgencyLevel = d.Urgency()
	f.DiscountResponse = d.DiscountResponse
	return f
}

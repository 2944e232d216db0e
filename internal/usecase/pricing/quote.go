package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// OptionNone is the "no discount" choice offered next to the catalog options.
const OptionNone = "none"

// OptionQuote prices one discount choice for an order.
type OptionQuote struct {
	OptionType         string          `json:"option_type"`
	Name               string          `json:"name"`
	MinValue           decimal.Decimal `json:"min_value"`
	MaxValue           decimal.Decimal `json:"max_value"`
	SuggestedValue     decimal.Decimal `json:"suggested_value"`
	EstimatedMin       decimal.Decimal `json:"estimated_discount_min"`
	EstimatedSuggested decimal.Decimal `json:"estimated_discount_suggested"`
	EstimatedMax       decimal.Decimal `json:"estimated_discount_max"`
	FinalAmount        decimal.Decimal `json:"final_amount"`
	Score              float64         `json:"recommendation_score"`
	Reasoning          string          `json:"reasoning"`
}

// Quote is the set of pricing options for a prospective order.
type Quote struct {
	UserID         string                    `json:"user_id"`
	CourseIDs      []string                  `json:"course_ids"`
	Base           decimal.Decimal           `json:"base_amount"`
	CouponCode     string                    `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal           `json:"coupon_discount"`
	Options        []OptionQuote             `json:"options"`
	Recommended    *OptionQuote              `json:"recommended,omitempty"`
	Guidance       string                    `json:"guidance"`
	Factors        domprofile.PricingFactors `json:"factors"`
}

// Eligible reports whether an option may be offered to a user with the given factors.
// Without a profile every option is eligible.
func Eligible(t domdiscount.OptionType, f domprofile.PricingFactors, courses int) bool {
	if !f.HasProfile {
		return true
	}
	switch t {
	case domdiscount.NewUser:
		return f.PaidOrders == 0
	case domdiscount.ReturningUser:
		return f.PaidOrders >= 1
	case domdiscount.BulkPurchase:
		return courses >= 2
	case domdiscount.UrgentConversion:
		return f.UrgencyLevel >= 4
	case domdiscount.VIP:
		return f.BudgetRange == domprofile.BudgetOver10K || f.PaidOrders >= 3
	}
	return false
}

// SuggestedValue picks a value inside the option range: the midpoint, the
// maximum for the most urgent users, the minimum for price-insensitive ones.
func SuggestedValue(o domdiscount.Option, f domprofile.PricingFactors) decimal.Decimal {
	switch {
	case f.UrgencyLevel == 5:
		return o.Max
	case f.PriceSensitivity == domprofile.SensitivityLow:
		return o.Min
	default:
		return o.Midpoint()
	}
}

// OptionScore rates a discount option for the user.
func OptionScore(suggested decimal.Decimal, f domprofile.PricingFactors) float64 {
	score := 0.5
	switch f.PriceSensitivity {
	case domprofile.SensitivityHigh:
		score += 0.3
	case domprofile.SensitivityLow:
		score -= 0.2
	}
	pct := suggested.Mul(decimal.NewFromInt(100))
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(10)) && pct.LessThanOrEqual(decimal.NewFromInt(25)):
		score += 0.2
	case pct.GreaterThan(decimal.NewFromInt(30)):
		score -= 0.1
	}
	if f.DiscountResponse == domprofile.DiscountHighlyMotivated {
		score += 0.1
	}
	return roundScore(score)
}

// NoneScore rates selling without a discount.
func NoneScore(f domprofile.PricingFactors) float64 {
	score := 0.3
	switch f.PriceSensitivity {
	case domprofile.SensitivityLow:
		score += 0.4
	case domprofile.SensitivityHigh:
		score -= 0.2
	}
	if f.DiscountResponse == domprofile.DiscountNotMotivated {
		score += 0.2
	}
	return roundScore(score)
}

func roundScore(v float64) float64 {
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*100) / 100
}

func optionReasoning(o domdiscount.Option, f domprofile.PricingFactors, courses int) string {
	var parts []string
	switch o.Type {
	case domdiscount.NewUser:
		parts = append(parts, "first purchase")
	case domdiscount.ReturningUser:
		parts = append(parts, fmt.Sprintf("%d previous paid orders", f.PaidOrders))
	case domdiscount.BulkPurchase:
		parts = append(parts, fmt.Sprintf("%d courses in the order", courses))
	case domdiscount.UrgentConversion:
		if f.UrgencyLevel > 0 {
			parts = append(parts, fmt.Sprintf("urgency %d/5", f.UrgencyLevel))
		}
	case domdiscount.VIP:
		parts = append(parts, "high value user")
	}
	if f.PriceSensitivity != "" {
		parts = append(parts, string(f.PriceSensitivity)+" price sensitivity")
	}
	if f.DiscountResponse != "" {
		parts = append(parts, strings.ReplaceAll(string(f.DiscountResponse), "_", " ")+" by discounts")
	}
	if !f.HasProfile {
		parts = append(parts, "no profile yet")
	}
	return strings.Join(parts, "; ")
}

func noneReasoning(f domprofile.PricingFactors) string {
	switch {
	case f.PriceSensitivity == domprofile.SensitivityLow:
		return "user is not price sensitive; keep the margin"
	case f.DiscountResponse == domprofile.DiscountNotMotivated:
		return "discounts do not move this user"
	case f.PriceSensitivity == domprofile.SensitivityHigh:
		return "price sensitive user; selling at full price is unlikely"
	default:
		return "sell at the current price"
	}
}

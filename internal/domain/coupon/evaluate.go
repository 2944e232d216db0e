package coupon

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

// Reason is a machine-readable rejection cause.
type Reason string

// Rejection reasons in evaluation order.
const (
	ReasonNone          Reason = ""
	ReasonNotFound      Reason = "not_found"
	ReasonInactive      Reason = "inactive"
	ReasonNotStarted    Reason = "not_started"
	ReasonExpired       Reason = "expired"
	ReasonUsedUp        Reason = "used_up"
	ReasonUserLimit     Reason = "user_limit"
	ReasonNotApplicable Reason = "not_applicable"
	ReasonBelowMinimum  Reason = "below_minimum"
)

// RejectionError explains why a coupon cannot be used.
type RejectionError struct {
	Code   string
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", domain.ErrCouponInvalid.Error(), e.Code, e.Detail)
}

func (e *RejectionError) Unwrap() error { return domain.ErrCouponInvalid }

// Order is the order context a coupon is evaluated against.
type Order struct {
	// Amount is the pre-discount order total.
	Amount decimal.Decimal
	// Lines maps course ID to line price. Empty means the whole amount is eligible.
	Lines map[string]decimal.Decimal
	// UserUses is how many times the user already redeemed this coupon.
	UserUses int
}

// Validation is the outcome of evaluating a coupon for an order.
type Validation struct {
	Code             string           `json:"code"`
	Valid            bool             `json:"valid"`
	Reason           Reason           `json:"reason,omitempty"`
	Errors           []string         `json:"errors,omitempty"`
	Discount         decimal.Decimal  `json:"estimated_discount"`
	EligibleAmount   decimal.Decimal  `json:"eligible_amount"`
	MinOrderRequired *decimal.Decimal `json:"min_order_required,omitempty"`
}

// Err returns a RejectionError for invalid results and nil otherwise.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	return &RejectionError{Code: v.Code, Reason: v.Reason, Detail: strings.Join(v.Errors, "; ")}
}

// NotFound builds the validation for an unknown code.
func NotFound(code string) Validation {
	return Validation{
		Code:   NormalizeCode(code),
		Reason: ReasonNotFound,
		Errors: []string{"coupon does not exist"},
	}
}

func reject(code string, r Reason, msg string) Validation {
	return Validation{Code: code, Reason: r, Errors: []string{msg}, Discount: decimal.Zero, EligibleAmount: decimal.Zero}
}

// Evaluate checks the coupon against the order at time now.
func (c Coupon) Evaluate(now time.Time, o Order) Validation {
	s := c.s
	switch {
	case s.Status != StatusActive:
		return reject(s.Code, ReasonInactive, fmt.Sprintf("coupon is %s", s.Status))
	case now.Before(s.ValidFrom):
		return reject(s.Code, ReasonNotStarted, "coupon is not valid yet")
	case now.After(s.ValidTo):
		return reject(s.Code, ReasonExpired, "coupon has expired")
	case s.UsageLimit != nil && s.UsedCount >= *s.UsageLimit:
		return reject(s.Code, ReasonUsedUp, "coupon usage limit reached")
	case s.UsageLimitPerUser != nil && o.UserUses >= *s.UsageLimitPerUser:
		return reject(s.Code, ReasonUserLimit, "user already used this coupon the maximum number of times")
	}

	eligible := c.eligibleAmount(o)
	if !eligible.IsPositive() && len(o.Lines) > 0 {
		return reject(s.Code, ReasonNotApplicable, "coupon does not apply to any course in the order")
	}
	if eligible.LessThan(s.MinOrderAmount) {
		v := reject(s.Code, ReasonBelowMinimum,
			fmt.Sprintf("order amount must be at least %s", s.MinOrderAmount.StringFixed(2)))
		minOrder := s.MinOrderAmount
		v.MinOrderRequired = &minOrder
		v.EligibleAmount = eligible
		return v
	}

	return Validation{
		Code:           s.Code,
		Valid:          true,
		Discount:       c.DiscountOn(eligible),
		EligibleAmount: eligible,
	}
}

func (c Coupon) eligibleAmount(o Order) decimal.Decimal {
	if len(o.Lines) == 0 {
		return o.Amount
	}
	total := decimal.Zero
	for id, price := range o.Lines {
		if c.AppliesTo(id) {
			total = total.Add(price)
		}
	}
	return total
}

// PriorityScore ranks coupons for recommendation: savings share, urgency of expiry, remaining stock.
func (c Coupon) PriorityScore(now time.Time, discount, orderAmount decimal.Decimal) float64 {
	score := 0.0
	if orderAmount.IsPositive() {
		share, _ := discount.Div(orderAmount).Float64()
		score += share * 0.4
	}

	days := c.DaysLeft(now)
	if days >= 0 && days <= 7 {
		score += float64(7-days) / 7 * 0.3
	}

	if c.s.UsageLimit == nil {
		score += 0.3
	} else if *c.s.UsageLimit > 0 {
		remaining := *c.s.UsageLimit - c.s.UsedCount
		if remaining > 0 {
			score += float64(remaining) / float64(*c.s.UsageLimit) * 0.3
		}
	}
	return math.Round(score*1000) / 1000
}

// DaysLeft returns whole days until ValidTo, negative once expired.
func (c Coupon) DaysLeft(now time.Time) int {
	left := c.s.ValidTo.Sub(now)
	if left < 0 {
		return -1
	}
	return int(left / (24 * time.Hour))
}

// RecommendationReason explains a coupon suggestion in plain text.
func (c Coupon) RecommendationReason(now time.Time, discount, orderAmount decimal.Decimal, priceSensitive bool) string {
	var parts []string
	if orderAmount.IsPositive() {
		share := discount.Div(orderAmount)
		pct := share.Mul(decimal.NewFromInt(100)).StringFixed(0)
		switch {
		case share.GreaterThanOrEqual(decimal.RequireFromString("0.2")):
			parts = append(parts, "large saving of "+pct+"%")
		case share.GreaterThanOrEqual(decimal.RequireFromString("0.1")):
			parts = append(parts, "good value, saves "+pct+"%")
		}
	}
	if priceSensitive {
		parts = append(parts, "fits a price-sensitive buyer")
	}
	if days := c.DaysLeft(now); days >= 0 && days <= 3 {
		parts = append(parts, fmt.Sprintf("expires in %d days, usable as urgency", days))
	}
	if len(parts) == 0 {
		return "applicable to this order"
	}
	return strings.Join(parts, "; ")
}

// Recommendation is a coupon suggested to the agent.
type Recommendation struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Discount      decimal.Decimal `json:"discount"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	PriorityScore float64         `json:"priority_score"`
	Reason        string          `json:"reason"`
	ValidTo       time.Time       `json:"valid_to"`
}

// Usage records one redemption.
type Usage struct {
	ID             string          `json:"id"`
	CouponID       string          `json:"coupon_id"`
	Code           string          `json:"code"`
	UserID         string          `json:"user_id"`
	OrderID        string          `json:"order_id"`
	CourseIDs      []string        `json:"course_ids"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	UsedAt         time.Time       `json:"used_at"`
}

// Stats summarizes redemptions of a coupon.
type Stats struct {
	Code          string          `json:"code"`
	TotalUses     int             `json:"total_uses"`
	UniqueUsers   int             `json:"unique_users"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	UsageRate     *float64        `json:"usage_rate,omitempty"`
}

package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

// DiscountDetail describes the agent discount used in a calculation.
type DiscountDetail struct {
	ID             string          `json:"id,omitempty"`
	OptionType     string          `json:"option_type"`
	Value          decimal.Decimal `json:"value"`
	CoveredAmount  decimal.Decimal `json:"covered_amount"`
	Amount         decimal.Decimal `json:"amount"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	CoveredCourses []string        `json:"covered_courses"`
	AutoSelected   bool            `json:"auto_selected"`
}

// CouponDetail describes the coupon evaluated in a calculation.
type CouponDetail struct {
	Code           string          `json:"code"`
	Valid          bool            `json:"valid"`
	Reason         string          `json:"reason,omitempty"`
	Errors         []string        `json:"errors,omitempty"`
	EligibleAmount decimal.Decimal `json:"eligible_amount"`
	Amount         decimal.Decimal `json:"amount"`
}

// PriceCalculation is the priced breakdown of a prospective order.
type PriceCalculation struct {
	Items             []Item          `json:"items"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	CouponDiscount    decimal.Decimal `json:"coupon_discount"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	Savings           decimal.Decimal `json:"savings"`
	SavingsPercentage decimal.Decimal `json:"savings_percentage"`
	Discount          *DiscountDetail `json:"discount,omitempty"`
	Coupon            *CouponDetail   `json:"coupon,omitempty"`
	MissingCourseIDs  []string        `json:"missing_course_ids,omitempty"`
}

// Combine fills the totals from base, discount and coupon amounts.
// The combined discount is capped at base; the coupon part shrinks first.
func Combine(items []Item, discount, coupon decimal.Decimal) PriceCalculation {
	base := decimal.Zero
	for _, it := range items {
		base = base.Add(it.SubtotalOriginal())
	}
	discount = domain.Round2(domain.Clamp(discount, decimal.Zero, base))
	coupon = domain.Round2(domain.Clamp(coupon, decimal.Zero, base.Sub(discount)))
	savings := discount.Add(coupon)
	return PriceCalculation{
		Items:             Allocate(items, savings),
		OriginalAmount:    base,
		DiscountAmount:    discount,
		CouponDiscount:    coupon,
		FinalAmount:       base.Sub(savings),
		Savings:           savings,
		SavingsPercentage: domain.Ratio(savings, base),
	}
}

// CourseIDs lists the priced course IDs.
func (p PriceCalculation) CourseIDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.CourseID
	}
	return ids
}

// Lines maps course ID to its undiscounted line subtotal.
func Lines(items []Item) map[string]decimal.Decimal {
	lines := make(map[string]decimal.Decimal, len(items))
	for _, it := range items {
		lines[it.CourseID] = lines[it.CourseID].Add(it.SubtotalOriginal())
	}
	return lines
}

// Statistics aggregates orders over a period.
type Statistics struct {
	TotalOrders       int             `json:"total_orders"`
	PaidOrders        int             `json:"paid_orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ConversionRate    decimal.Decimal `json:"conversion_rate"`
}

// Finalize derives the average order value and conversion rate.
func (s Statistics) Finalize() Statistics {
	if s.PaidOrders > 0 {
		s.AverageOrderValue = domain.Round2(s.Revenue.Div(decimal.NewFromInt(int64(s.PaidOrders))))
	} else {
		s.AverageOrderValue = decimal.Zero
	}
	s.ConversionRate = domain.Ratio(decimal.NewFromInt(int64(s.PaidOrders)), decimal.NewFromInt(int64(s.TotalOrders)))
	return s
}

// RevenuePoint is one day of paid revenue.
type RevenuePoint struct {
	Date    string          `json:"date"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// CourseSales is the sales volume of one course.
type CourseSales struct {
	CourseID   string          `json:"course_id"`
	CourseName string          `json:"course_name"`
	Sold       int             `json:"sold"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// Filter narrows order listings.
type Filter struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

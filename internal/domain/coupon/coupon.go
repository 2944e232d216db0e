package coupon

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

// Type is how the coupon value is interpreted.
type Type string

// Coupon types.
const (
	Percentage  Type = "percentage"
	FixedAmount Type = "fixed_amount"
)

// Status is the coupon lifecycle state.
type Status string

// Coupon statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
	StatusUsedUp   Status = "used_up"
)

// IsValid checks if the status is supported.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired, StatusUsedUp:
		return true
	}
	return false
}

const (
	maxCodeLen        = 50
	maxNameLen        = 100
	maxDescriptionLen = 500
)

// State is the persisted representation of a coupon.
type State struct {
	ID                string
	Code              string
	Name              string
	Type              Type
	Value             decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscount       *decimal.Decimal
	ValidFrom         time.Time
	ValidTo           time.Time
	UsageLimit        *int
	UsageLimitPerUser *int
	UsedCount         int
	ApplicableCourses []string
	Description       string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Coupon is a redeemable code (immutable value object).
type Coupon struct {
	s State
}

// Draft holds the input for a new coupon.
type Draft struct {
	Code              string
	Name              string
	Type              Type
	Value             decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscount       *decimal.Decimal
	ValidFrom         time.Time
	ValidTo           time.Time
	UsageLimit        *int
	UsageLimitPerUser *int
	ApplicableCourses []string
	Description       string
	Status            Status
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// New validates a draft and creates a coupon.
func New(d Draft, now time.Time) (Coupon, error) {
	status := d.Status
	if status == "" {
		status = StatusActive
	}
	s := State{
		ID:                "cpn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Code:              NormalizeCode(d.Code),
		Name:              strings.TrimSpace(d.Name),
		Type:              d.Type,
		Value:             d.Value,
		MinOrderAmount:    d.MinOrderAmount,
		MaxDiscount:       d.MaxDiscount,
		ValidFrom:         d.ValidFrom,
		ValidTo:           d.ValidTo,
		UsageLimit:        d.UsageLimit,
		UsageLimitPerUser: d.UsageLimitPerUser,
		ApplicableCourses: d.ApplicableCourses,
		Description:       d.Description,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validate(s); err != nil {
		return Coupon{}, err
	}
	return Coupon{s: s}, nil
}

// Reconstruct creates a Coupon without validation (storage hydration).
func Reconstruct(s State) Coupon {
	return Coupon{s: s}
}

func validate(s State) error {
	if s.Code == "" || len(s.Code) > maxCodeLen {
		return domain.Invalid("code", "must be 1-%d characters", maxCodeLen)
	}
	if s.Name == "" || len([]rune(s.Name)) > maxNameLen {
		return domain.Invalid("name", "must be 1-%d characters", maxNameLen)
	}
	switch s.Type {
	case Percentage:
		if !s.Value.IsPositive() || s.Value.GreaterThan(decimal.NewFromInt(1)) {
			return domain.Invalid("discount_value", "percentage must be in (0, 1]")
		}
	case FixedAmount:
		if !s.Value.IsPositive() {
			return domain.Invalid("discount_value", "fixed amount must be positive")
		}
	default:
		return domain.Invalid("coupon_type", "unknown type %q", s.Type)
	}
	if s.MinOrderAmount.IsNegative() {
		return domain.Invalid("min_order_amount", "must not be negative")
	}
	if s.MaxDiscount != nil && s.MaxDiscount.IsNegative() {
		return domain.Invalid("max_discount", "must not be negative")
	}
	if !s.ValidFrom.Before(s.ValidTo) {
		return domain.Invalid("valid_to", "must be after valid_from")
	}
	if s.UsageLimit != nil && *s.UsageLimit < 1 {
		return domain.Invalid("usage_limit", "must be at least 1")
	}
	if s.UsageLimitPerUser != nil && *s.UsageLimitPerUser < 1 {
		return domain.Invalid("usage_limit_per_user", "must be at least 1")
	}
	if s.UsedCount < 0 {
		return domain.Invalid("used_count", "must not be negative")
	}
	if len([]rune(s.Description)) > maxDescriptionLen {
		return domain.Invalid("description", "must be at most %d characters", maxDescriptionLen)
	}
	if !s.Status.IsValid() {
		return domain.Invalid("status", "unknown status %q", s.Status)
	}
	return nil
}

// Update is a partial coupon change. Code and type are immutable.
type Update struct {
	Name              *string
	Value             *decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscount       *decimal.Decimal
	ValidFrom         *time.Time
	ValidTo           *time.Time
	UsageLimit        *int
	UsageLimitPerUser *int
	ApplicableCourses []string
	Description       *string
	Status            *Status
}

// Apply returns a copy with the update applied and re-validated.
func (c Coupon) Apply(u Update, now time.Time) (Coupon, error) {
	s := c.s
	if u.Name != nil {
		s.Name = strings.TrimSpace(*u.Name)
	}
	if u.Value != nil {
		s.Value = *u.Value
	}
	if u.MinOrderAmount != nil {
		s.MinOrderAmount = *u.MinOrderAmount
	}
	if u.MaxDiscount != nil {
		md := *u.MaxDiscount
		s.MaxDiscount = &md
	}
	if u.ValidFrom != nil {
		s.ValidFrom = *u.ValidFrom
	}
	if u.ValidTo != nil {
		s.ValidTo = *u.ValidTo
	}
	if u.UsageLimit != nil {
		l := *u.UsageLimit
		s.UsageLimit = &l
	}
	if u.UsageLimitPerUser != nil {
		l := *u.UsageLimitPerUser
		s.UsageLimitPerUser = &l
	}
	if u.ApplicableCourses != nil {
		s.ApplicableCourses = u.ApplicableCourses
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	s.UpdatedAt = now
	if err := validate(s); err != nil {
		return Coupon{}, err
	}
	return Coupon{s: s}, nil
}

// State returns a copy of the persisted representation.
func (c Coupon) State() State { return c.s }

// ID returns the coupon identifier.
func (c Coupon) ID() string { return c.s.ID }

// Code returns the redeemable code.
func (c Coupon) Code() string { return c.s.Code }

// Name returns the display name.
func (c Coupon) Name() string { return c.s.Name }

// Type returns the coupon type.
func (c Coupon) Type() Type { return c.s.Type }

// Value returns the discount value (fraction for percentage coupons).
func (c Coupon) Value() decimal.Decimal { return c.s.Value }

// ValidTo returns the end of the validity window.
func (c Coupon) ValidTo() time.Time { return c.s.ValidTo }

// UsedCount returns the number of redemptions.
func (c Coupon) UsedCount() int { return c.s.UsedCount }

// UsageLimit returns the total redemption limit, if any.
func (c Coupon) UsageLimit() *int { return c.s.UsageLimit }

// Status returns the lifecycle state.
func (c Coupon) Status() Status { return c.s.Status }

// IsValid reports whether the coupon is active, inside its window and not exhausted.
func (c Coupon) IsValid(now time.Time) bool {
	if c.s.Status != StatusActive {
		return false
	}
	if now.Before(c.s.ValidFrom) || now.After(c.s.ValidTo) {
		return false
	}
	return c.s.UsageLimit == nil || c.s.UsedCount < *c.s.UsageLimit
}

// AppliesTo reports whether the coupon covers courseID.
func (c Coupon) AppliesTo(courseID string) bool {
	if len(c.s.ApplicableCourses) == 0 {
		return true
	}
	for _, id := range c.s.ApplicableCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// DiscountOn computes the discount for an eligible amount, ignoring validity.
func (c Coupon) DiscountOn(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || amount.LessThan(c.s.MinOrderAmount) {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch c.s.Type {
	case Percentage:
		discount = domain.Round2(amount.Mul(c.s.Value))
		if c.s.MaxDiscount != nil {
			discount = domain.MinDecimal(discount, *c.s.MaxDiscount)
		}
	case FixedAmount:
		discount = c.s.Value
	}
	return domain.MinDecimal(discount, amount)
}

// Redeemed returns a copy with the usage counter incremented, switching to used_up at the limit.
func (c Coupon) Redeemed(now time.Time) Coupon {
	s := c.s
	s.UsedCount++
	if s.UsageLimit != nil && s.UsedCount >= *s.UsageLimit {
		s.Status = StatusUsedUp
	}
	s.UpdatedAt = now
	return Coupon{s: s}
}

// Released returns a copy with one redemption reverted.
func (c Coupon) Released(now time.Time) Coupon {
	s := c.s
	if s.UsedCount > 0 {
		s.UsedCount--
	}
	if s.Status == StatusUsedUp && (s.UsageLimit == nil || s.UsedCount < *s.UsageLimit) {
		s.Status = StatusActive
	}
	s.UpdatedAt = now
	return Coupon{s: s}
}

package discount

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

const (
	maxValidHours = 168
	maxReasonLen  = 2000
)

// Application is the agent's decision to grant a discount.
type Application struct {
	UserID         string
	OptionType     OptionType
	Value          decimal.Decimal
	CourseIDs      []string
	AgentReasoning string
	ValidHours     int
}

// Normalize validates the application against the catalog and fills defaults.
func (a Application) Normalize(c *Catalog, defaultValidHours int) (Application, Option, error) {
	a.UserID = strings.TrimSpace(a.UserID)
	if a.UserID == "" {
		return a, Option{}, domain.Invalid("user_id", "is required")
	}
	opt, ok := c.Option(a.OptionType)
	if !ok {
		return a, Option{}, domain.Invalid("option_type", "unknown option %q", a.OptionType)
	}
	if !opt.Active {
		return a, Option{}, domain.Invalid("option_type", "option %q is disabled", a.OptionType)
	}
	if a.Value.IsNegative() || a.Value.GreaterThan(decimal.NewFromInt(1)) {
		return a, Option{}, domain.Invalid("discount_value", "must be between 0 and 1")
	}
	if !opt.InRange(a.Value) {
		return a, Option{}, &RangeError{Option: opt, Value: a.Value}
	}
	a.CourseIDs = dedupe(a.CourseIDs)
	if len(a.CourseIDs) == 0 {
		return a, Option{}, domain.Invalid("course_ids", "at least one course is required")
	}
	if a.ValidHours == 0 {
		a.ValidHours = defaultValidHours
	}
	if a.ValidHours < 1 || a.ValidHours > maxValidHours {
		return a, Option{}, domain.Invalid("valid_hours", "must be between 1 and %d", maxValidHours)
	}
	if len([]rune(a.AgentReasoning)) > maxReasonLen {
		return a, Option{}, domain.Invalid("agent_reasoning", "must be at most %d characters", maxReasonLen)
	}
	return a, opt, nil
}

// RangeError reports a value outside the option's range.
type RangeError struct {
	Option Option
	Value  decimal.Decimal
}

func (e *RangeError) Error() string {
	return domain.ErrDiscountOutOfRange.Error() + ": " + string(e.Option.Type) +
		" allows " + e.Option.Min.String() + "-" + e.Option.Max.String() + ", got " + e.Value.String()
}

func (e *RangeError) Unwrap() error { return domain.ErrDiscountOutOfRange }

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AmountFor returns base*value rounded to cents and capped at base.
func AmountFor(base, value decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return domain.MinDecimal(domain.Round2(base.Mul(value)), base)
}

// AppliedState is the persisted representation of an applied discount.
type AppliedState struct {
	ID             string
	UserID         string
	OptionType     OptionType
	DiscountType   Type
	Value          decimal.Decimal
	CourseIDs      []string
	OriginalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	AgentReasoning string
	ValidUntil     time.Time
	IsUsed         bool
	UsedAt         *time.Time
	OrderID        string
	CreatedAt      time.Time
}

// Applied is a discount granted to a user for a set of courses.
type Applied struct {
	s AppliedState
}

// NewApplied creates an applied discount from a normalized application.
// base is the sum of current prices of the covered courses.
func NewApplied(a Application, opt Option, base decimal.Decimal, now time.Time) Applied {
	base = domain.Round2(base)
	amount := AmountFor(base, a.Value)
	return Applied{s: AppliedState{
		ID:             "disc_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:         a.UserID,
		OptionType:     a.OptionType,
		DiscountType:   opt.DiscountType,
		Value:          a.Value,
		CourseIDs:      a.CourseIDs,
		OriginalAmount: base,
		DiscountAmount: amount,
		FinalAmount:    base.Sub(amount),
		AgentReasoning: a.AgentReasoning,
		ValidUntil:     now.Add(time.Duration(a.ValidHours) * time.Hour),
		CreatedAt:      now,
	}}
}

// ReconstructApplied hydrates an applied discount from storage.
func ReconstructApplied(s AppliedState) Applied {
	return Applied{s: s}
}

// State returns a copy of the persisted representation.
func (a Applied) State() AppliedState { return a.s }

// ID returns the discount identifier.
func (a Applied) ID() string { return a.s.ID }

// UserID returns the owner.
func (a Applied) UserID() string { return a.s.UserID }

// OptionType returns the catalog option used.
func (a Applied) OptionType() OptionType { return a.s.OptionType }

// Value returns the discount fraction.
func (a Applied) Value() decimal.Decimal { return a.s.Value }

// CourseIDs returns the covered courses.
func (a Applied) CourseIDs() []string { return a.s.CourseIDs }

// DiscountAmount returns the amount computed at application time.
func (a Applied) DiscountAmount() decimal.Decimal { return a.s.DiscountAmount }

// ValidUntil returns the expiry.
func (a Applied) ValidUntil() time.Time { return a.s.ValidUntil }

// IsUsed reports whether the discount was consumed by an order.
func (a Applied) IsUsed() bool { return a.s.IsUsed }

// Usable reports whether the discount can still be applied.
func (a Applied) Usable(now time.Time) bool {
	return !a.s.IsUsed && now.Before(a.s.ValidUntil)
}

// Covers reports whether the discount applies to courseID.
func (a Applied) Covers(courseID string) bool {
	for _, id := range a.s.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// AmountOn computes the discount on the covered subset of order lines.
// lines maps course ID to its price; uncovered courses are ignored.
func (a Applied) AmountOn(lines map[string]decimal.Decimal) (covered, amount decimal.Decimal) {
	covered = decimal.Zero
	for id, price := range lines {
		if a.Covers(id) {
			covered = covered.Add(price)
		}
	}
	return covered, AmountFor(covered, a.s.Value)
}

// MarkUsed returns a copy consumed by orderID.
func (a Applied) MarkUsed(orderID string, now time.Time) (Applied, error) {
	if a.s.IsUsed {
		return Applied{}, domain.ErrDiscountUnavailable
	}
	s := a.s
	s.IsUsed = true
	s.UsedAt = &now
	s.OrderID = orderID
	return Applied{s: s}, nil
}

// Released returns a copy detached from its order so it can be reused.
func (a Applied) Released() Applied {
	s := a.s
	s.IsUsed = false
	s.UsedAt = nil
	s.OrderID = ""
	return Applied{s: s}
}

// OrderID returns the consuming order, empty while unused.
func (a Applied) OrderID() string { return a.s.OrderID }

// OptionStats summarizes how one option performed.
type OptionStats struct {
	OptionType     OptionType      `json:"option_type"`
	Applied        int             `json:"applied"`
	Used           int             `json:"used"`
	ConversionRate float64         `json:"conversion_rate"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
	AverageValue   decimal.Decimal `json:"average_value"`
}

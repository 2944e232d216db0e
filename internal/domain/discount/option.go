package discount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OptionType identifies an entry of the discount catalog.
type OptionType string

// Catalog option types.
const (
	NewUser          OptionType = "new_user"
	UrgentConversion OptionType = "urgent_conversion"
	ReturningUser    OptionType = "returning_user"
	BulkPurchase     OptionType = "bulk_purchase"
	VIP              OptionType = "vip_discount"
)

// Type is how a discount value is interpreted.
type Type string

// Discount types.
const (
	Percentage  Type = "percentage"
	FixedAmount Type = "fixed_amount"
)

// Option is a discount the agent may grant, bounded by [Min, Max].
type Option struct {
	Type         OptionType      `json:"option_type"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Guidance     string          `json:"guidance"`
	DiscountType Type            `json:"discount_type"`
	Min          decimal.Decimal `json:"min_value"`
	Max          decimal.Decimal `json:"max_value"`
	Active       bool            `json:"active"`
}

// Midpoint returns the centre of the allowed range rounded to 0.01.
func (o Option) Midpoint() decimal.Decimal {
	return o.Min.Add(o.Max).Div(decimal.NewFromInt(2)).Round(2)
}

// InRange reports whether v is within [Min, Max].
func (o Option) InRange(v decimal.Decimal) bool {
	return !v.LessThan(o.Min) && !v.GreaterThan(o.Max)
}

// Catalog is the fixed set of discount options.
type Catalog struct {
	options []Option
}

// DefaultCatalog returns the standard option set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Option{
		{
			Type:         NewUser,
			Name:         "New user first purchase",
			Description:  "Welcome discount for a user's first order",
			Guidance:     "Use for new users with clear purchase intent. 15-25% usually converts well.",
			DiscountType: Percentage,
			Min:          decimal.RequireFromString("0.10"),
			Max:          decimal.RequireFromString("0.30"),
			Active:       true,
		},
		{
			Type:         UrgentConversion,
			Name:         "Urgent conversion",
			Description:  "Time-limited offer for users ready to decide now",
			Guidance:     "Use when urgency is 4 or higher and the budget fits. 20-35% closes hesitant buyers.",
			DiscountType: Percentage,
			Min:          decimal.RequireFromString("0.15"),
			Max:          decimal.RequireFromString("0.40"),
			Active:       true,
		},
		{
			Type:         ReturningUser,
			Name:         "Returning customer",
			Description:  "Loyalty discount for users who already bought a course",
			Guidance:     "Use for repeat buyers. 5-15% is enough to reward loyalty.",
			DiscountType: Percentage,
			Min:          decimal.RequireFromString("0.05"),
			Max:          decimal.RequireFromString("0.20"),
			Active:       true,
		},
		{
			Type:         BulkPurchase,
			Name:         "Bulk purchase",
			Description:  "Discount for buying two or more courses together",
			Guidance:     "Use when the order has 2+ courses. More courses justify a higher value.",
			DiscountType: Percentage,
			Min:          decimal.RequireFromString("0.10"),
			Max:          decimal.RequireFromString("0.25"),
			Active:       true,
		},
		{
			Type:         VIP,
			Name:         "VIP exclusive",
			Description:  "Reserved for high value users",
			Guidance:     "Use sparingly for high budget or repeat high value users. Protect margin.",
			DiscountType: Percentage,
			Min:          decimal.RequireFromString("0.20"),
			Max:          decimal.RequireFromString("0.50"),
			Active:       true,
		},
	})
}

// NewCatalog creates a catalog from options in display order.
func NewCatalog(options []Option) *Catalog {
	cp := make([]Option, len(options))
	copy(cp, options)
	return &Catalog{options: cp}
}

// Options returns every option in catalog order.
func (c *Catalog) Options() []Option {
	out := make([]Option, len(c.options))
	copy(out, c.options)
	return out
}

// Option looks up an option by type.
func (c *Catalog) Option(t OptionType) (Option, bool) {
	for _, o := range c.options {
		if o.Type == t {
			return o, true
		}
	}
	return Option{}, false
}

// Index returns the catalog position of t, or -1.
func (c *Catalog) Index(t OptionType) int {
	for i, o := range c.options {
		if o.Type == t {
			return i
		}
	}
	return -1
}

// PromptGuidance renders the catalog as instructions for the agent prompt.
func (c *Catalog) PromptGuidance() string {
	var b strings.Builder
	b.WriteString("Available discount options:\n\n")
	n := 0
	for _, o := range c.options {
		if !o.Active {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s (%s)\n", n, o.Name, o.Type)
		fmt.Fprintf(&b, "   Range: %s%% - %s%%\n", percent(o.Min), percent(o.Max))
		fmt.Fprintf(&b, "   When: %s\n", o.Description)
		fmt.Fprintf(&b, "   Guidance: %s\n\n", o.Guidance)
	}
	b.WriteString("Rules:\n")
	b.WriteString("- Pick at most one option per order and stay inside its range.\n")
	b.WriteString("- Prefer the smallest value that resolves the user's price objection.\n")
	b.WriteString("- Always explain the reasoning when applying a discount.\n")
	b.WriteString("- A discount expires; tell the user how long the offer is valid.\n")
	return b.String()
}

func percent(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(0)
}

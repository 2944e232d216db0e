package offerd

import (
	"context"

	"github.com/coursedesk/offerd/internal/app"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	agentuc "github.com/coursedesk/offerd/internal/usecase/agent"
	profileuc "github.com/coursedesk/offerd/internal/usecase/profile"
)

// Agent-facing types.
type (
	ProfileBrief          = agentuc.ProfileBrief
	ProfileView           = profileuc.View
	ProfileUpdate         = domprofile.Update
	ProfileChange         = domprofile.Change
	ConversationUpdate    = agentuc.ConversationUpdate
	RecommendationRequest = agentuc.RecommendationRequest
	Recommendations       = agentuc.Recommendations
	CourseBrief           = agentuc.CourseBrief
	PricingBrief          = agentuc.PricingBrief
	DiscountApplication   = domdiscount.Application
	Decision              = agentuc.Decision
	OrderRequest          = agentuc.OrderRequest
	OrderBrief            = agentuc.OrderBrief
	ConversationContext   = agentuc.Context
	SweepReport           = app.SweepReport
	OptionType            = domdiscount.OptionType
)

// Discount catalog options.
const (
	OptionNewUser          = domdiscount.NewUser
	OptionUrgentConversion = domdiscount.UrgentConversion
	OptionReturningUser    = domdiscount.ReturningUser
	OptionBulkPurchase     = domdiscount.BulkPurchase
	OptionVIP              = domdiscount.VIP
)

// Profile returns the user's profile with insights and sales guidance.
// A user without a profile yields Status "no_profile" and no error.
func (c *Client) Profile(ctx context.Context, userID string) (ProfileBrief, error) {
	return observed(c.obs, "profile", func() (ProfileBrief, error) {
		return c.agent.ProfileForAgent(ctx, userID)
	})
}

// UpdateProfile merges conversation findings, creating the profile on first contact.
func (c *Client) UpdateProfile(ctx context.Context, u ConversationUpdate) (ProfileView, ProfileChange, error) {
	type result struct {
		view   ProfileView
		change ProfileChange
	}
	r, err := observed(c.obs, "update_profile", func() (result, error) {
		v, ch, err := c.agent.UpdateFromConversation(ctx, u)
		return result{v, ch}, err
	})
	return r.view, r.change, err
}

// Recommend ranks available courses against the user's profile.
func (c *Client) Recommend(ctx context.Context, r RecommendationRequest) (Recommendations, error) {
	return observed(c.obs, "recommend", func() (Recommendations, error) {
		return c.agent.CourseRecommendations(ctx, r)
	})
}

// Course returns a course with its agent description.
func (c *Client) Course(ctx context.Context, id string) (CourseBrief, error) {
	return observed(c.obs, "course", func() (CourseBrief, error) {
		return c.agent.CourseDetails(ctx, id)
	})
}

// PricingOptions quotes the courses and lists scored discount options.
func (c *Client) PricingOptions(ctx context.Context, userID string, courseIDs []string, couponCode string) (PricingBrief, error) {
	return observed(c.obs, "pricing_options", func() (PricingBrief, error) {
		return c.agent.PricingOptions(ctx, userID, courseIDs, couponCode)
	})
}

// ApplyDiscount persists a discount decision and prices the courses with it.
func (c *Client) ApplyDiscount(ctx context.Context, a DiscountApplication, couponCode string) (Decision, error) {
	return observed(c.obs, "apply_discount", func() (Decision, error) {
		return c.agent.ApplyDiscount(ctx, a, couponCode)
	})
}

// CreateOrder places an order, applying a new discount decision first when OptionType is set.
func (c *Client) CreateOrder(ctx context.Context, r OrderRequest) (OrderBrief, error) {
	return observed(c.obs, "create_order", func() (OrderBrief, error) {
		return c.agent.CreateOrder(ctx, r)
	})
}

// OrderStatus returns an order with payment guidance.
func (c *Client) OrderStatus(ctx context.Context, id string) (OrderBrief, error) {
	return observed(c.obs, "order_status", func() (OrderBrief, error) {
		return c.agent.OrderStatus(ctx, id)
	})
}

// Context summarizes everything known about the user for the next agent turn.
func (c *Client) Context(ctx context.Context, userID string) (ConversationContext, error) {
	return observed(c.obs, "context", func() (ConversationContext, error) {
		return c.agent.ConversationContext(ctx, userID)
	})
}

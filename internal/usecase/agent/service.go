package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/usecase/order"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
	"github.com/coursedesk/offerd/internal/usecase/profile"
)

const (
	defaultRecommendations = 5
	maxRecommendations     = 20
	recentOrders           = 3
	contextCoupons         = 5
	conversationSource     = "conversation"
)

// Profile lookup outcomes.
const (
	ProfileFound   = "found"
	ProfileMissing = "no_profile"
)

// Service is the single entry point the sales agent talks to.
type Service struct {
	profiles  Profiles
	courses   Courses
	pricer    Pricer
	discounts Discounts
	coupons   Coupons
	orders    Orders
	logger    *zap.Logger
}

// Deps groups the collaborators of the agent facade.
type Deps struct {
	Profiles  Profiles
	Courses   Courses
	Pricer    Pricer
	Discounts Discounts
	Coupons   Coupons
	Orders    Orders
	Logger    *zap.Logger
}

// New creates the agent facade.
func New(d Deps) *Service {
	return &Service{
		profiles:  d.Profiles,
		courses:   d.Courses,
		pricer:    d.Pricer,
		discounts: d.Discounts,
		coupons:   d.Coupons,
		orders:    d.Orders,
		logger:    d.Logger,
	}
}

// optionalProfile loads a profile and treats a missing one as nil.
func (s *Service) optionalProfile(ctx context.Context, userID string) (*domprofile.Profile, error) {
	if userID == "" {
		return nil, nil
	}
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

// ProfileBrief is a profile prepared for the agent.
type ProfileBrief struct {
	Status          string
	View            *profile.View
	Insights        *Insights
	SalesGuidance   []string
	Recommendations []string
}

// ProfileForAgent returns the user's profile with insights and sales guidance.
func (s *Service) ProfileForAgent(ctx context.Context, userID string) (ProfileBrief, error) {
	p, err := s.optionalProfile(ctx, userID)
	if err != nil {
		return ProfileBrief{}, err
	}
	if p == nil {
		return ProfileBrief{
			Status:          ProfileMissing,
			Recommendations: []string{"survey the user's needs before recommending courses"},
		}, nil
	}
	v := profile.ViewOf(*p)
	return ProfileBrief{
		Status:          ProfileFound,
		View:            &v,
		Insights:        InsightsOf(p),
		SalesGuidance:   salesGuidance(*p),
		Recommendations: profileSuggestions(*p),
	}, nil
}

// ConversationUpdate carries what the agent learned during a conversation.
type ConversationUpdate struct {
	UserID        string
	SessionID     string
	ChannelSource string
	Update        domprofile.Update
}

// UpdateFromConversation merges conversation findings into the profile,
// creating the profile on first contact.
func (s *Service) UpdateFromConversation(ctx context.Context, u ConversationUpdate) (profile.View, domprofile.Change, error) {
	_, err := s.profiles.Get(ctx, u.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		_, err = s.profiles.Create(ctx, domprofile.Draft{
			UserID:        u.UserID,
			SessionID:     u.SessionID,
			ChannelSource: u.ChannelSource,
		}, conversationSource)
	}
	if err != nil {
		return profile.View{}, domprofile.Change{}, err
	}
	p, ch, err := s.profiles.Update(ctx, u.UserID, u.Update, conversationSource)
	if err != nil {
		return profile.View{}, domprofile.Change{}, err
	}
	return profile.ViewOf(p), ch, nil
}

// RecommendationRequest narrows the courses to recommend.
type RecommendationRequest struct {
	UserID   string
	Keywords string
	Category domcourse.Category
	Limit    int
}

// Recommendations is a ranked course shortlist.
type Recommendations struct {
	Matches  []Match
	Insights *Insights
	Strategy string
}

// CourseRecommendations ranks available courses against the user's profile.
func (s *Service) CourseRecommendations(ctx context.Context, r RecommendationRequest) (Recommendations, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = defaultRecommendations
	}
	if limit > maxRecommendations {
		limit = maxRecommendations
	}

	var (
		p       *domprofile.Profile
		courses []domcourse.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = s.optionalProfile(gctx, r.UserID)
		return err
	})
	g.Go(func() (err error) {
		if strings.TrimSpace(r.Keywords) == "" && r.Category == "" {
			courses, err = s.courses.AllForAgent(gctx)
			return err
		}
		q := domcourse.NewSearchQuery()
		q.Keywords = r.Keywords
		q.Category = r.Category
		q.Limit = 100
		courses, err = s.courses.Search(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return Recommendations{}, err
	}

	matches := make([]Match, 0, len(courses))
	for _, c := range courses {
		if c.IsAvailable() {
			matches = append(matches, MatchCourse(c, p))
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return Recommendations{
		Matches:  matches,
		Insights: InsightsOf(p),
		Strategy: recommendationStrategy(p),
	}, nil
}

// CourseBrief is a course prepared for the agent to present.
type CourseBrief struct {
	Course         domcourse.Course
	Description    string
	SellingPoints  []string
	TargetAudience []string
}

// CourseDetails describes one course with selling points.
func (s *Service) CourseDetails(ctx context.Context, id string) (CourseBrief, error) {
	c, err := s.courses.Get(ctx, id)
	if err != nil {
		return CourseBrief{}, err
	}
	return CourseBrief{
		Course:         c,
		Description:    c.AgentDescription(),
		SellingPoints:  SellingPoints(c),
		TargetAudience: TargetAudience(c),
	}, nil
}

// PricingBrief is a quote with coupon suggestions and negotiation guidance.
type PricingBrief struct {
	Quote              pricing.Quote
	Coupons            []domcoupon.Recommendation
	Strategy           string
	NegotiationTips    []string
	ClosingSuggestions []string
}

// PricingOptions quotes the order and gathers coupon suggestions for the agent.
func (s *Service) PricingOptions(ctx context.Context, userID string, courseIDs []string, couponCode string) (PricingBrief, error) {
	var (
		quote pricing.Quote
		p     *domprofile.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		quote, err = s.pricer.Options(gctx, userID, courseIDs, couponCode)
		return err
	})
	g.Go(func() (err error) {
		p, err = s.optionalProfile(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return PricingBrief{}, err
	}

	sensitive := p != nil && p.Dimensions().PriceSensitivity == domprofile.SensitivityHigh
	coupons, err := s.coupons.RecommendationsForAgent(ctx, userID, quote.Base, nil, sensitive)
	if err != nil {
		return PricingBrief{}, fmt.Errorf("recommend coupons: %w", err)
	}
	return PricingBrief{
		Quote:              quote,
		Coupons:            coupons,
		Strategy:           pricingStrategy(p),
		NegotiationTips:    negotiationTips(p),
		ClosingSuggestions: closingSuggestions(p, quote.Base),
	}, nil
}

// Decision is an applied discount with the resulting price.
type Decision struct {
	Applied     domdiscount.Applied
	Calculation domorder.PriceCalculation
	NextSteps   []string
}

// ApplyDiscount persists the agent's discount decision and prices the order with it.
func (s *Service) ApplyDiscount(ctx context.Context, a domdiscount.Application, couponCode string) (Decision, error) {
	applied, err := s.discounts.Apply(ctx, a)
	if err != nil {
		return Decision{}, err
	}
	calc, err := s.pricer.Calculate(ctx, pricing.Request{
		UserID:            a.UserID,
		CourseIDs:         applied.CourseIDs(),
		CouponCode:        couponCode,
		AppliedDiscountID: applied.ID(),
	})
	if err != nil {
		return Decision{}, err
	}
	s.logger.Info("Agent discount decision",
		zap.String("user_id", a.UserID),
		zap.String("discount_id", applied.ID()),
		zap.String("option", string(applied.OptionType())),
		zap.String("final_amount", calc.FinalAmount.StringFixed(2)))
	return Decision{
		Applied:     applied,
		Calculation: calc,
		NextSteps:   []string{"present the final price", "confirm purchase intent", "create the order"},
	}, nil
}

// OrderRequest is an order placed by the agent. A non-empty OptionType
// applies a new discount decision before the order is created.
type OrderRequest struct {
	UserID            string
	CourseIDs         []string
	CouponCode        string
	AppliedDiscountID string
	OptionType        domdiscount.OptionType
	Value             decimal.Decimal
	Reasoning         string
	PaymentMethod     string
}

// OrderBrief is an order prepared for the agent.
type OrderBrief struct {
	Order       domorder.Order
	Summary     string
	Explanation string
	NextSteps   []string
	Payment     *PaymentGuidance
}

// CreateOrder places an order, applying the agent's discount decision first when given.
func (s *Service) CreateOrder(ctx context.Context, r OrderRequest) (OrderBrief, error) {
	discountID := r.AppliedDiscountID
	if r.OptionType != "" {
		applied, err := s.discounts.Apply(ctx, domdiscount.Application{
			UserID:         r.UserID,
			OptionType:     r.OptionType,
			Value:          r.Value,
			CourseIDs:      r.CourseIDs,
			AgentReasoning: r.Reasoning,
		})
		if err != nil {
			return OrderBrief{}, err
		}
		discountID = applied.ID()
	}
	var notes string
	if r.Reasoning != "" {
		notes = "created by agent: " + r.Reasoning
	}
	o, err := s.orders.Create(ctx, order.CreateRequest{
		UserID:            r.UserID,
		CourseIDs:         r.CourseIDs,
		CouponCode:        r.CouponCode,
		AppliedDiscountID: discountID,
		PaymentMethod:     r.PaymentMethod,
		Notes:             notes,
	})
	if err != nil {
		return OrderBrief{}, err
	}
	pg := paymentGuidance(o)
	return OrderBrief{
		Order:       o,
		Summary:     order.Describe(o),
		Explanation: explainStatus(o),
		NextSteps:   []string{"guide the user to pay", "share the payment link", "follow up on payment"},
		Payment:     &pg,
	}, nil
}

// OrderStatus explains an order and suggests what to do next.
func (s *Service) OrderStatus(ctx context.Context, id string) (OrderBrief, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return OrderBrief{}, err
	}
	return OrderBrief{
		Order:       o,
		Summary:     order.Describe(o),
		Explanation: explainStatus(o),
		NextSteps:   suggestedActions(o),
	}, nil
}

// Context is what the agent needs to resume a conversation.
type Context struct {
	Profile          *profile.View
	RecentOrders     []domorder.Order
	Coupons          []domcoupon.Coupon
	ConversationTips []string
	Personalization  []string
}

// ConversationContext loads the profile, recent orders and valid coupons concurrently.
func (s *Service) ConversationContext(ctx context.Context, userID string) (Context, error) {
	if strings.TrimSpace(userID) == "" {
		return Context{}, domain.Invalid("user_id", "is required")
	}
	var (
		p       *domprofile.Profile
		orders  []domorder.Order
		coupons []domcoupon.Coupon
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = s.optionalProfile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		orders, _, err = s.orders.ListForUser(gctx, domorder.Filter{UserID: userID, Limit: recentOrders})
		if err != nil {
			return fmt.Errorf("recent orders: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		coupons, err = s.coupons.ListValid(gctx)
		if err != nil {
			return fmt.Errorf("valid coupons: %w", err)
		}
		if len(coupons) > contextCoupons {
			coupons = coupons[:contextCoupons]
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Context{}, err
	}

	out := Context{
		RecentOrders:     orders,
		Coupons:          coupons,
		ConversationTips: conversationTips(p),
		Personalization:  personalization(p),
	}
	if p != nil {
		v := profile.ViewOf(*p)
		out.Profile = &v
	}
	return out, nil
}

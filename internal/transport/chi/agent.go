package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/usecase/agent"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
	"github.com/coursedesk/offerd/internal/usecase/profile"
)

// AgentProfileResponse is the body of GET /agent/users/{uid}/profile.
type AgentProfileResponse struct {
	Status          string           `json:"status"`
	Profile         *ProfileResponse `json:"profile,omitempty"`
	Insights        *agent.Insights  `json:"insights,omitempty"`
	SalesGuidance   []string         `json:"sales_guidance"`
	Recommendations []string         `json:"recommendations"`
}

func optionalView(v *profile.View) *ProfileResponse {
	if v == nil {
		return nil
	}
	resp := viewToResponse(*v)
	return &resp
}

func strs(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// AgentProfile handles GET /agent/users/{uid}/profile.
func (s *Server) AgentProfile(w http.ResponseWriter, r *http.Request) {
	b, err := s.agent.ProfileForAgent(r.Context(), gochi.URLParam(r, "uid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AgentProfileResponse{
		Status:          b.Status,
		Profile:         optionalView(b.View),
		Insights:        b.Insights,
		SalesGuidance:   strs(b.SalesGuidance),
		Recommendations: strs(b.Recommendations),
	})
}

// ConversationUpdateRequest is the body of PATCH /agent/users/{uid}/profile.
type ConversationUpdateRequest struct {
	SessionID     string `json:"session_id"`
	ChannelSource string `json:"channel_source"`
	ProfileUpdateRequest
}

// AgentUpdateProfile handles PATCH /agent/users/{uid}/profile.
func (s *Server) AgentUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ConversationUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, ch, err := s.agent.UpdateFromConversation(r.Context(), agent.ConversationUpdate{
		UserID:        gochi.URLParam(r, "uid"),
		SessionID:     req.SessionID,
		ChannelSource: req.ChannelSource,
		Update:        domprofile.Update(req.ProfileUpdateRequest),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateProfileResponse{
		Profile:        viewToResponse(v),
		ChangeResponse: changeToResponse(ch),
	})
}

// RecommendationsRequest is the body of POST /agent/users/{uid}/recommendations.
type RecommendationsRequest struct {
	Keywords string `json:"keywords"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

// MatchResponse is one recommended course.
type MatchResponse struct {
	Course  CourseResponse `json:"course"`
	Score   float64        `json:"match_score"`
	Reasons []string       `json:"reasons"`
}

// RecommendationsResponse is a ranked course shortlist.
type RecommendationsResponse struct {
	Items    []MatchResponse `json:"items"`
	Insights *agent.Insights `json:"insights,omitempty"`
	Strategy string          `json:"strategy"`
}

// AgentRecommendations handles POST /agent/users/{uid}/recommendations.
func (s *Server) AgentRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationsRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	recs, err := s.agent.CourseRecommendations(r.Context(), agent.RecommendationRequest{
		UserID:   gochi.URLParam(r, "uid"),
		Keywords: req.Keywords,
		Category: domcourse.Category(req.Category),
		Limit:    req.Limit,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{
		Items: mapSlice(recs.Matches, func(m agent.Match) MatchResponse {
			return MatchResponse{Course: courseToResponse(m.Course), Score: m.Score, Reasons: strs(m.Reasons)}
		}),
		Insights: recs.Insights,
		Strategy: recs.Strategy,
	})
}

// CourseBriefResponse is a course with selling points.
type CourseBriefResponse struct {
	Course         CourseResponse `json:"course"`
	Description    string         `json:"agent_description"`
	SellingPoints  []string       `json:"selling_points"`
	TargetAudience []string       `json:"target_audience"`
}

// AgentCourse handles GET /agent/courses/{id}.
func (s *Server) AgentCourse(w http.ResponseWriter, r *http.Request) {
	b, err := s.agent.CourseDetails(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CourseBriefResponse{
		Course:         courseToResponse(b.Course),
		Description:    b.Description,
		SellingPoints:  strs(b.SellingPoints),
		TargetAudience: strs(b.TargetAudience),
	})
}

// PricingBriefResponse is the body of POST /agent/pricing.
type PricingBriefResponse struct {
	Quote              pricing.Quote              `json:"quote"`
	Coupons            []domcoupon.Recommendation `json:"coupons"`
	Strategy           string                     `json:"pricing_strategy"`
	NegotiationTips    []string                   `json:"negotiation_tips"`
	ClosingSuggestions []string                   `json:"closing_suggestions"`
}

// AgentPricing handles POST /agent/pricing.
func (s *Server) AgentPricing(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := s.agent.PricingOptions(r.Context(), req.UserID, req.CourseIDs, req.CouponCode)
	if err != nil {
		handleError(w, r, err)
		return
	}
	coupons := b.Coupons
	if coupons == nil {
		coupons = []domcoupon.Recommendation{}
	}
	writeJSON(w, http.StatusOK, PricingBriefResponse{
		Quote:              b.Quote,
		Coupons:            coupons,
		Strategy:           b.Strategy,
		NegotiationTips:    strs(b.NegotiationTips),
		ClosingSuggestions: strs(b.ClosingSuggestions),
	})
}

// AgentDiscountRequest is the body of POST /agent/discounts.
type AgentDiscountRequest struct {
	ApplyDiscountRequest
	CouponCode string `json:"coupon_code,omitempty"`
}

// DecisionResponse is the result of an agent discount decision.
type DecisionResponse struct {
	Applied     AppliedDiscountResponse   `json:"applied_discount"`
	Calculation domorder.PriceCalculation `json:"price_calculation"`
	NextSteps   []string                  `json:"next_steps"`
}

// AgentApplyDiscount handles POST /agent/discounts.
func (s *Server) AgentApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req AgentDiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := s.agent.ApplyDiscount(r.Context(), req.application(), req.CouponCode)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, DecisionResponse{
		Applied:     appliedToResponse(d.Applied),
		Calculation: d.Calculation,
		NextSteps:   strs(d.NextSteps),
	})
}

// AgentOrderRequest is the body of POST /agent/orders.
// option_type and discount_value apply a new discount before ordering.
type AgentOrderRequest struct {
	UserID            string          `json:"user_id"`
	CourseIDs         []string        `json:"course_ids"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	AppliedDiscountID string          `json:"applied_discount_id,omitempty"`
	OptionType        string          `json:"option_type,omitempty"`
	Value             decimal.Decimal `json:"discount_value"`
	Reasoning         string          `json:"agent_reasoning,omitempty"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
}

// OrderBriefResponse is an order with agent guidance.
type OrderBriefResponse struct {
	Order       OrderResponse          `json:"order"`
	Summary     string                 `json:"summary"`
	Explanation string                 `json:"status_explanation,omitempty"`
	NextSteps   []string               `json:"next_steps"`
	Payment     *agent.PaymentGuidance `json:"payment_guidance,omitempty"`
}

func briefToResponse(b agent.OrderBrief) OrderBriefResponse {
	return OrderBriefResponse{
		Order:       orderToResponse(b.Order),
		Summary:     b.Summary,
		Explanation: b.Explanation,
		NextSteps:   strs(b.NextSteps),
		Payment:     b.Payment,
	}
}

// AgentCreateOrder handles POST /agent/orders.
func (s *Server) AgentCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req AgentOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := s.agent.CreateOrder(r.Context(), agent.OrderRequest{
		UserID:            req.UserID,
		CourseIDs:         req.CourseIDs,
		CouponCode:        req.CouponCode,
		AppliedDiscountID: req.AppliedDiscountID,
		OptionType:        domdiscount.OptionType(req.OptionType),
		Value:             req.Value,
		Reasoning:         req.Reasoning,
		PaymentMethod:     req.PaymentMethod,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/orders/"+b.Order.ID())
	writeJSON(w, http.StatusCreated, briefToResponse(b))
}

// AgentOrderStatus handles GET /agent/orders/{id}.
func (s *Server) AgentOrderStatus(w http.ResponseWriter, r *http.Request) {
	b, err := s.agent.OrderStatus(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, briefToResponse(b))
}

// ContextResponse is the body of GET /agent/users/{uid}/context.
type ContextResponse struct {
	Profile          *ProfileResponse `json:"profile,omitempty"`
	RecentOrders     []OrderResponse  `json:"recent_orders"`
	Coupons          []CouponResponse `json:"available_coupons"`
	ConversationTips []string         `json:"conversation_tips"`
	Personalization  []string         `json:"personalization"`
}

// AgentContext handles GET /agent/users/{uid}/context.
func (s *Server) AgentContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.agent.ConversationContext(r.Context(), gochi.URLParam(r, "uid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{
		Profile:          optionalView(c.Profile),
		RecentOrders:     mapSlice(c.RecentOrders, orderToResponse),
		Coupons:          mapSlice(c.Coupons, couponToResponse),
		ConversationTips: strs(c.ConversationTips),
		Personalization:  strs(c.Personalization),
	})
}

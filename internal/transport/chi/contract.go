package chi

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/usecase/agent"
	"github.com/coursedesk/offerd/internal/usecase/health"
	"github.com/coursedesk/offerd/internal/usecase/order"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
	"github.com/coursedesk/offerd/internal/usecase/profile"
)

// CourseService serves the course catalog.
type CourseService interface {
	Get(ctx context.Context, id string) (domcourse.Course, error)
	Search(ctx context.Context, q domcourse.SearchQuery) ([]domcourse.Course, error)
	Popular(ctx context.Context, limit int) ([]domcourse.Course, error)
	Categories(ctx context.Context) ([]domcourse.CategoryStats, error)
	PriceRange(ctx context.Context, cat domcourse.Category) (domcourse.PriceRange, error)
	Create(ctx context.Context, d domcourse.Draft) (domcourse.Course, error)
	Update(ctx context.Context, id string, u domcourse.Update) (domcourse.Course, error)
	AgentView(ctx context.Context, id string) (string, error)
}

// CouponService manages coupons.
type CouponService interface {
	GetByCode(ctx context.Context, code string) (domcoupon.Coupon, error)
	Create(ctx context.Context, d domcoupon.Draft) (domcoupon.Coupon, error)
	Update(ctx context.Context, code string, u domcoupon.Update) (domcoupon.Coupon, error)
	ListValid(ctx context.Context) ([]domcoupon.Coupon, error)
	Expiring(ctx context.Context, days int) ([]domcoupon.Coupon, error)
	Validate(
		ctx context.Context, code, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal,
	) (domcoupon.Validation, error)
	Stats(ctx context.Context, code string) (domcoupon.Stats, error)
	AvailableForUser(ctx context.Context, userID string, amount decimal.Decimal) ([]domcoupon.Recommendation, error)
}

// DiscountService manages agent discount decisions.
type DiscountService interface {
	Options() []domdiscount.Option
	Guidance() string
	Apply(ctx context.Context, a domdiscount.Application) (domdiscount.Applied, error)
	Get(ctx context.Context, id string) (domdiscount.Applied, error)
	ActiveForUser(ctx context.Context, userID string) ([]domdiscount.Applied, error)
	EffectivenessStats(ctx context.Context, days int) ([]domdiscount.OptionStats, error)
}

// PricingService prices prospective orders.
type PricingService interface {
	Calculate(ctx context.Context, r pricing.Request) (domorder.PriceCalculation, error)
	Options(ctx context.Context, userID string, courseIDs []string, couponCode string) (pricing.Quote, error)
	Compare(ctx context.Context, userID string, courseIDs []string, scenarios []pricing.Scenario) ([]pricing.ScenarioResult, error)
}

// OrderService runs the order lifecycle.
type OrderService interface {
	Create(ctx context.Context, r order.CreateRequest) (domorder.Order, error)
	Get(ctx context.Context, id string) (domorder.Order, error)
	ListForUser(ctx context.Context, f domorder.Filter) ([]domorder.Order, int64, error)
	ProcessPayment(ctx context.Context, id string, p order.PaymentResult) (domorder.Order, error)
	Cancel(ctx context.Context, id, reason string) (domorder.Order, error)
	Refund(ctx context.Context, id string) (domorder.Order, error)
	Statistics(ctx context.Context, from, to time.Time, userID string) (domorder.Statistics, error)
	RevenueTrend(ctx context.Context, days int, userID string) ([]domorder.RevenuePoint, error)
	PopularCourses(ctx context.Context, days, limit int) ([]domorder.CourseSales, error)
}

// ProfileService manages user profiles.
type ProfileService interface {
	Create(ctx context.Context, d domprofile.Draft, source string) (domprofile.Profile, error)
	Response(ctx context.Context, userID string) (profile.View, error)
	Update(ctx context.Context, userID string, u domprofile.Update, source string) (domprofile.Profile, domprofile.Change, error)
	Delete(ctx context.Context, userID string, hard bool) error
	GetBySession(ctx context.Context, sessionID string) (domprofile.Profile, error)
	BatchGet(ctx context.Context, userIDs []string) ([]domprofile.Profile, error)
	History(ctx context.Context, userID string, limit int) ([]domprofile.History, error)
	Stats(ctx context.Context) (profile.Stats, error)
}

// AgentService is the facade used by the sales agent.
type AgentService interface {
	ProfileForAgent(ctx context.Context, userID string) (agent.ProfileBrief, error)
	UpdateFromConversation(ctx context.Context, u agent.ConversationUpdate) (profile.View, domprofile.Change, error)
	CourseRecommendations(ctx context.Context, r agent.RecommendationRequest) (agent.Recommendations, error)
	CourseDetails(ctx context.Context, id string) (agent.CourseBrief, error)
	PricingOptions(ctx context.Context, userID string, courseIDs []string, couponCode string) (agent.PricingBrief, error)
	ApplyDiscount(ctx context.Context, a domdiscount.Application, couponCode string) (agent.Decision, error)
	CreateOrder(ctx context.Context, r agent.OrderRequest) (agent.OrderBrief, error)
	OrderStatus(ctx context.Context, id string) (agent.OrderBrief, error)
	ConversationContext(ctx context.Context, userID string) (agent.Context, error)
}

// HealthService reports dependency health.
type HealthService interface {
	Check(ctx context.Context) health.Report
}

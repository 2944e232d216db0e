package agent

import (
	"context"

	"github.com/shopspring/decimal"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/usecase/order"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

// Profiles reads and writes user profiles.
type Profiles interface {
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
	Create(ctx context.Context, d domprofile.Draft, source string) (domprofile.Profile, error)
	Update(ctx context.Context, userID string, u domprofile.Update, source string) (domprofile.Profile, domprofile.Change, error)
}

// Courses reads the course catalog.
type Courses interface {
	Get(ctx context.Context, id string) (domcourse.Course, error)
	Search(ctx context.Context, q domcourse.SearchQuery) ([]domcourse.Course, error)
	AllForAgent(ctx context.Context) ([]domcourse.Course, error)
}

// Pricer quotes and prices prospective orders.
type Pricer interface {
	Options(ctx context.Context, userID string, courseIDs []string, couponCode string) (pricing.Quote, error)
	Calculate(ctx context.Context, r pricing.Request) (domorder.PriceCalculation, error)
}

// Discounts persists agent discount decisions.
type Discounts interface {
	Apply(ctx context.Context, a domdiscount.Application) (domdiscount.Applied, error)
}

// Coupons suggests coupons.
type Coupons interface {
	ListValid(ctx context.Context) ([]domcoupon.Coupon, error)
	RecommendationsForAgent(
		ctx context.Context, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal, priceSensitive bool,
	) ([]domcoupon.Recommendation, error)
}

// Orders creates and reads orders.
type Orders interface {
	Create(ctx context.Context, r order.CreateRequest) (domorder.Order, error)
	Get(ctx context.Context, id string) (domorder.Order, error)
	ListForUser(ctx context.Context, f domorder.Filter) ([]domorder.Order, int64, error)
}

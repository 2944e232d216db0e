package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// CourseCatalog resolves priced courses.
type CourseCatalog interface {
	GetMany(ctx context.Context, ids []string) ([]domcourse.Course, error)
}

// Discounts resolves applied agent discounts.
type Discounts interface {
	Usable(ctx context.Context, id, userID string) (domdiscount.Applied, error)
	BestForUser(ctx context.Context, userID string, lines map[string]decimal.Decimal) (*domdiscount.Applied, error)
}

// Coupons evaluates coupon codes.
type Coupons interface {
	Validate(
		ctx context.Context, code, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal,
	) (domcoupon.Validation, error)
}

// Profiles loads user profiles.
type Profiles interface {
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
}

// Orders counts a user's paid orders.
type Orders interface {
	PaidCount(ctx context.Context, userID string) (int, error)
}

// Cache is the best-effort read-through cache.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
}

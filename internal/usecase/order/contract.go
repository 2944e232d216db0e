package order

import (
	"context"
	"time"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	"github.com/coursedesk/offerd/internal/usecase/coupon"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

// Repository defines the storage contract for orders.
type Repository interface {
	Create(ctx context.Context, o domorder.Order) error
	Update(ctx context.Context, o domorder.Order) error
	Get(ctx context.Context, id string) (domorder.Order, error)
	List(ctx context.Context, f domorder.Filter) ([]domorder.Order, int64, error)
	PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domorder.Order, error)
	PaidCount(ctx context.Context, userID string) (int, error)
	Statistics(ctx context.Context, from, to time.Time, userID string) (domorder.Statistics, error)
	RevenueByDay(ctx context.Context, from, to time.Time, userID string) ([]domorder.RevenuePoint, error)
	PopularCourses(ctx context.Context, since time.Time, limit int) ([]domorder.CourseSales, error)
}

// TxManager runs a function inside one database transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pricer prices prospective orders.
type Pricer interface {
	Calculate(ctx context.Context, r pricing.Request) (domorder.PriceCalculation, error)
}

// Coupons redeems and releases coupons.
type Coupons interface {
	Redeem(ctx context.Context, r coupon.Redemption) (domcoupon.Usage, error)
	Release(ctx context.Context, orderID string) error
}

// Discounts consumes and releases applied discounts.
type Discounts interface {
	MarkUsed(ctx context.Context, id, userID, orderID string) (domdiscount.Applied, error)
	Release(ctx context.Context, orderID string) error
}

// Courses records course sales.
type Courses interface {
	RecordSales(ctx context.Context, ids []string) error
}

// Cache is the best-effort read-through cache.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string)
}

// Metrics receives order lifecycle events.
type Metrics interface {
	Order(event string)
	Revenue(amount float64)
}

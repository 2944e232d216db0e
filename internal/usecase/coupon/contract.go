package coupon

import (
	"context"
	"time"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
)

// Repository defines the storage contract for coupons and their redemptions.
type Repository interface {
	Create(ctx context.Context, c domcoupon.Coupon) error
	Update(ctx context.Context, c domcoupon.Coupon) error
	SaveUsage(ctx context.Context, c domcoupon.Coupon, readUsedCount int) error
	GetByCode(ctx context.Context, code string) (domcoupon.Coupon, error)
	GetByCodeForUpdate(ctx context.Context, code string) (domcoupon.Coupon, error)
	ListValid(ctx context.Context, now time.Time, limit int) ([]domcoupon.Coupon, error)
	Expiring(ctx context.Context, now, until time.Time) ([]domcoupon.Coupon, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	RecordUsage(ctx context.Context, u domcoupon.Usage) error
	DeleteUsageByOrder(ctx context.Context, orderID string) (domcoupon.Usage, error)
	UserUses(ctx context.Context, couponID, userID string) (int, error)
	UserUsesByCoupon(ctx context.Context, userID string) (map[string]int, error)
	UsageHistory(ctx context.Context, code string, limit int) ([]domcoupon.Usage, error)
	Stats(ctx context.Context, code string) (domcoupon.Stats, error)
}

// TxManager runs a function inside one database transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Cache is the best-effort read-through cache.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string)
}

// Metrics receives redemption outcomes.
type Metrics interface {
	CouponRedemption(result string)
}

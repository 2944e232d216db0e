package discount

import (
	"context"
	"time"

	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
)

// Repository defines the storage contract for applied discounts.
type Repository interface {
	Create(ctx context.Context, a domdiscount.Applied) error
	SaveUsage(ctx context.Context, a domdiscount.Applied) error
	Get(ctx context.Context, id string) (domdiscount.Applied, error)
	GetByOrder(ctx context.Context, orderID string) (domdiscount.Applied, error)
	ActiveForUser(ctx context.Context, userID string, now time.Time) ([]domdiscount.Applied, error)
	History(ctx context.Context, userID string, limit int) ([]domdiscount.Applied, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	EffectivenessStats(ctx context.Context, since time.Time) ([]domdiscount.OptionStats, error)
}

// CourseCatalog resolves the courses a discount covers.
type CourseCatalog interface {
	GetMany(ctx context.Context, ids []string) ([]domcourse.Course, error)
}

// Metrics receives applied discount events.
type Metrics interface {
	DiscountApplied(option string)
}

package course

import (
	"context"
	"time"

	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

// Repository defines the storage contract for courses.
type Repository interface {
	Create(ctx context.Context, c domcourse.Course) error
	Update(ctx context.Context, c domcourse.Course) error
	Get(ctx context.Context, id string) (domcourse.Course, error)
	GetMany(ctx context.Context, ids []string) ([]domcourse.Course, error)
	Search(ctx context.Context, q domcourse.SearchQuery) ([]domcourse.Course, error)
	ByCategory(ctx context.Context, cat domcourse.Category, limit, offset int) ([]domcourse.Course, error)
	ListAvailable(ctx context.Context, limit, offset int) ([]domcourse.Course, error)
	Popular(ctx context.Context, limit int) ([]domcourse.Course, error)
	Categories(ctx context.Context) ([]domcourse.CategoryStats, error)
	PriceRange(ctx context.Context, cat domcourse.Category) (domcourse.PriceRange, error)
	IncrementStudents(ctx context.Context, ids []string, delta int) error
}

// Cache is the best-effort read-through cache.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string)
}

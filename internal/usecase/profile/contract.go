package profile

import (
	"context"
	"time"

	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// Repository defines the storage contract for profiles and their history.
type Repository interface {
	Create(ctx context.Context, p domprofile.Profile) error
	Update(ctx context.Context, p domprofile.Profile) error
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
	GetBySession(ctx context.Context, sessionID string) (domprofile.Profile, error)
	BatchGet(ctx context.Context, userIDs []string) ([]domprofile.Profile, error)
	ByCriteria(ctx context.Context, c domprofile.Criteria) ([]domprofile.Profile, error)
	SoftDelete(ctx context.Context, p domprofile.Profile) error
	HardDelete(ctx context.Context, userID string) error
	AppendHistory(ctx context.Context, h domprofile.History) error
	History(ctx context.Context, userID string, limit int) ([]domprofile.History, error)
	Stats(ctx context.Context) (domprofile.Stats, error)
}

// TxManager runs a function inside one database transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Cache is the best-effort read-through cache with daily counters.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string)
	Incr(ctx context.Context, key string, ttl time.Duration)
	Count(ctx context.Context, key string) int64
}

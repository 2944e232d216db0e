package offerd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/app"
	"github.com/coursedesk/offerd/internal/config"
	"github.com/coursedesk/offerd/internal/db/postgres"
	dbRedis "github.com/coursedesk/offerd/internal/db/redis"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/metrics"
	"github.com/coursedesk/offerd/internal/repository/cache"
	"github.com/coursedesk/offerd/internal/repository/schema"
	agentuc "github.com/coursedesk/offerd/internal/usecase/agent"
	profileuc "github.com/coursedesk/offerd/internal/usecase/profile"
)

const defaultReadinessTimeout = 10 * time.Second

type agentUseCase interface {
	ProfileForAgent(ctx context.Context, userID string) (agentuc.ProfileBrief, error)
	UpdateFromConversation(ctx context.Context, u agentuc.ConversationUpdate) (profileuc.View, domprofile.Change, error)
	CourseRecommendations(ctx context.Context, r agentuc.RecommendationRequest) (agentuc.Recommendations, error)
	CourseDetails(ctx context.Context, id string) (agentuc.CourseBrief, error)
	PricingOptions(ctx context.Context, userID string, courseIDs []string, couponCode string) (agentuc.PricingBrief, error)
	ApplyDiscount(ctx context.Context, a domdiscount.Application, couponCode string) (agentuc.Decision, error)
	CreateOrder(ctx context.Context, r agentuc.OrderRequest) (agentuc.OrderBrief, error)
	OrderStatus(ctx context.Context, id string) (agentuc.OrderBrief, error)
	ConversationContext(ctx context.Context, userID string) (agentuc.Context, error)
}

type sweeper interface {
	Sweep(ctx context.Context) (app.SweepReport, error)
}

// Client is the offerd SDK entry point.
type Client struct {
	db        *gorm.DB
	store     *dbRedis.Store
	agent     agentUseCase
	sweeper   sweeper
	healthSvc healthUseCase
	obs       *observer
}

// New opens the database (and cache, when configured) and wires the services.
// The provided context is used for the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.dsn == "" {
		return nil, errors.New("offerd: database required (use WithPostgres or WithSQLite)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.autoMigrate {
		if err := schema.Migrate(db); err != nil {
			_ = postgres.Close(db)
			return nil, fmt.Errorf("offerd: %w", err)
		}
	}

	c := &Client{db: db, obs: obs}
	deps := app.Deps{DB: db, Cache: cache.Disabled(), Logger: zap.NewNop()}
	if len(cfg.cacheAddrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			_ = postgres.Close(db)
			return nil, fmt.Errorf("offerd: create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			_ = postgres.Close(db)
			return nil, fmt.Errorf("offerd: cache not ready: %w", err)
		}
		c.store = store
		deps.Cache = cache.New(store, cfg.appConfig().Cache.KeyPrefix, metrics.CacheRequestsTotal, deps.Logger)
		deps.CachePinger = store
	}

	a := app.New(cfg.appConfig(), deps)
	c.agent = a.Agent
	c.sweeper = a
	c.healthSvc = a.Health
	return c, nil
}

func openDB(cfg *clientConfig) (*gorm.DB, error) {
	switch cfg.driver {
	case "postgres":
		db, err := postgres.Open(postgres.Config{DSN: cfg.dsn}, nil)
		if err != nil {
			return nil, fmt.Errorf("offerd: open postgres: %w", err)
		}
		return db, nil
	case "sqlite":
		db, err := postgres.OpenSQLite(cfg.dsn, nil)
		if err != nil {
			return nil, fmt.Errorf("offerd: open sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("offerd: unknown driver %q", cfg.driver)
	}
}

func (cfg *clientConfig) appConfig() config.Config {
	var out config.Config
	out.Cache.KeyPrefix = cfg.cachePrefix
	out.Orders.PaymentTimeoutMin = int(cfg.paymentTimeout / time.Minute)
	out.Discounts.DefaultValidHours = cfg.discountValidHour
	out.ApplyDefaults()
	return out
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.db != nil {
		_ = postgres.Close(c.db)
	}
}

// Sweep cancels unpaid orders past the payment timeout and expires stale coupons and discounts.
func (c *Client) Sweep(ctx context.Context) (SweepReport, error) {
	return observed(c.obs, "sweep", func() (SweepReport, error) {
		return c.sweeper.Sweep(ctx)
	})
}

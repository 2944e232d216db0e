// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/config"
	"github.com/coursedesk/offerd/internal/db/postgres"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	"github.com/coursedesk/offerd/internal/metrics"
	"github.com/coursedesk/offerd/internal/repository/cache"
	couponrepo "github.com/coursedesk/offerd/internal/repository/coupon"
	courserepo "github.com/coursedesk/offerd/internal/repository/course"
	discountrepo "github.com/coursedesk/offerd/internal/repository/discount"
	orderrepo "github.com/coursedesk/offerd/internal/repository/order"
	profilerepo "github.com/coursedesk/offerd/internal/repository/profile"
	chiTransport "github.com/coursedesk/offerd/internal/transport/chi"
	agentuc "github.com/coursedesk/offerd/internal/usecase/agent"
	couponuc "github.com/coursedesk/offerd/internal/usecase/coupon"
	courseuc "github.com/coursedesk/offerd/internal/usecase/course"
	discountuc "github.com/coursedesk/offerd/internal/usecase/discount"
	healthuc "github.com/coursedesk/offerd/internal/usecase/health"
	orderuc "github.com/coursedesk/offerd/internal/usecase/order"
	pricinguc "github.com/coursedesk/offerd/internal/usecase/pricing"
	profileuc "github.com/coursedesk/offerd/internal/usecase/profile"
)

// Deps are the infrastructure handles the services are built on.
type Deps struct {
	DB *gorm.DB
	// Cache may be cache.Disabled().
	Cache *cache.Cache
	// CachePinger is nil when caching is disabled.
	CachePinger healthuc.CachePinger
	Logger      *zap.Logger
}

// App holds the wired use cases.
type App struct {
	Courses   *courseuc.Service
	Coupons   *couponuc.Service
	Discounts *discountuc.Service
	Pricing   *pricinguc.Service
	Orders    *orderuc.Service
	Profiles  *profileuc.Service
	Agent     *agentuc.Service
	Health    *healthuc.Service

	logger *zap.Logger
}

// New wires repositories and services.
func New(cfg config.Config, d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := d.Cache
	if c == nil {
		c = cache.Disabled()
	}
	tx := postgres.NewTxManager(d.DB)
	rec := metrics.Recorder{}
	catalog := domdiscount.DefaultCatalog()
	ttl := cfg.Cache.TTL

	courseRepo := courserepo.New(d.DB)
	orderRepo := orderrepo.New(d.DB)

	courses := courseuc.New(courseRepo, c, ttl.Course(), logger.Named("course"))
	coupons := couponuc.New(couponrepo.New(d.DB), tx, c, ttl.Coupon(), rec, logger.Named("coupon"))
	discounts := discountuc.New(discountrepo.New(d.DB), courses, catalog,
		cfg.Discounts.DefaultValidHours, rec, logger.Named("discount"))
	profiles := profileuc.New(profilerepo.New(d.DB), tx, c, ttl.Profile(), logger.Named("profile"))
	pricing := pricinguc.New(courses, discounts, coupons, profiles, orderRepo,
		catalog, c, ttl.Price(), logger.Named("pricing"))
	orders := orderuc.New(orderuc.Deps{
		Repo:      orderRepo,
		Tx:        tx,
		Pricer:    pricing,
		Coupons:   coupons,
		Discounts: discounts,
		Courses:   courses,
		Cache:     c,
		Metrics:   rec,
		Logger:    logger.Named("order"),
	}, ttl.Order(), time.Duration(cfg.Orders.PaymentTimeoutMin)*time.Minute)
	agent := agentuc.New(agentuc.Deps{
		Profiles:  profiles,
		Courses:   courses,
		Pricer:    pricing,
		Discounts: discounts,
		Coupons:   coupons,
		Orders:    orders,
		Logger:    logger.Named("agent"),
	})

	return &App{
		Courses:   courses,
		Coupons:   coupons,
		Discounts: discounts,
		Pricing:   pricing,
		Orders:    orders,
		Profiles:  profiles,
		Agent:     agent,
		Health:    healthuc.New(postgres.NewPinger(d.DB), d.CachePinger),
		logger:    logger,
	}
}

// Server builds the HTTP API over the wired services.
func (a *App) Server() *chiTransport.Server {
	return chiTransport.NewServer(chiTransport.Services{
		Courses:   a.Courses,
		Coupons:   a.Coupons,
		Discounts: a.Discounts,
		Pricing:   a.Pricing,
		Orders:    a.Orders,
		Profiles:  a.Profiles,
		Agent:     a.Agent,
		Health:    a.Health,
	})
}

// SweepReport counts what one sweep changed.
type SweepReport struct {
	OrdersCancelled  int
	CouponsExpired   int64
	DiscountsExpired int64
}

// Sweep cancels timed-out pending orders and expires stale coupons and discounts.
// It keeps going after a failed step and returns the first error.
func (a *App) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		rep   SweepReport
		first error
		err   error
	)
	keep := func(e error) {
		if e != nil && first == nil {
			first = e
		}
	}

	rep.OrdersCancelled, err = a.Orders.SweepExpired(ctx)
	keep(err)
	rep.CouponsExpired, err = a.Coupons.ExpireStale(ctx)
	keep(err)
	rep.DiscountsExpired, err = a.Discounts.ExpireStale(ctx)
	keep(err)
	return rep, first
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval returns immediately.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := a.Sweep(ctx)
			if err != nil {
				a.logger.Warn("Sweep failed", zap.Error(err))
				continue
			}
			a.logger.Debug("Sweep finished",
				zap.Int("orders_cancelled", rep.OrdersCancelled),
				zap.Int64("coupons_expired", rep.CouponsExpired),
				zap.Int64("discounts_expired", rep.DiscountsExpired),
			)
		}
	}
}

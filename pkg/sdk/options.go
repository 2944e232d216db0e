package offerd

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver string // "postgres" or "sqlite"
	dsn    string

	cacheAddrs    []string
	cachePassword string
	cachePrefix   string

	autoMigrate       bool
	paymentTimeout    time.Duration
	discountValidHour int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres connects the client to a Postgres database.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithSQLite opens a SQLite database file, or an in-memory one for ":memory:".
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.dsn = path
	})
}

// WithRedis enables the read-through cache.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
	})
}

// WithCachePrefix sets the cache key prefix. Default: "offerd:".
func WithCachePrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cachePrefix = prefix
	})
}

// WithAutoMigrate creates or updates the schema on connect.
func WithAutoMigrate() Option {
	return optionFunc(func(c *clientConfig) {
		c.autoMigrate = true
	})
}

// WithPaymentTimeout sets how long an order may stay unpaid before Sweep cancels it.
// Default: 30 minutes.
func WithPaymentTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.paymentTimeout = d
	})
}

// WithDiscountValidHours sets the default lifetime of applied discounts.
// Default: 24.
func WithDiscountValidHours(h int) Option {
	return optionFunc(func(c *clientConfig) {
		c.discountValidHour = h
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

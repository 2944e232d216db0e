// Command offerctl runs operator tasks against the offerd database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/app"
	"github.com/coursedesk/offerd/internal/config"
	"github.com/coursedesk/offerd/internal/db/postgres"
	dbRedis "github.com/coursedesk/offerd/internal/db/redis"
	logpkg "github.com/coursedesk/offerd/internal/logger"
	"github.com/coursedesk/offerd/internal/metrics"
	"github.com/coursedesk/offerd/internal/repository/cache"
)

type globalFlags struct {
	env     string
	dsn     string
	sqlite  string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "offerctl",
		Short: "Operator tasks for the offerd database",
		Long: `offerctl migrates the schema, loads sample data and runs the expiry sweep.

By default it reads config/<env>.yaml like the server does. --dsn overrides the
Postgres DSN and --sqlite switches to a local SQLite file with default settings.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.env, "config-env", config.GetEnv(), "config environment (config/<env>.yaml)")
	root.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "Postgres DSN, overrides the config file")
	root.PersistentFlags().StringVar(&flags.sqlite, "sqlite", "", "SQLite database path for local runs")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCmd(flags),
		newSeedCmd(flags),
		newSweepCmd(flags),
		newGuidanceCmd(),
		newVersionCmd(),
	)
	return root
}

// env is an opened database plus the services built on it.
type env struct {
	cfg    config.Config
	db     *gorm.DB
	store  *dbRedis.Store
	logger *zap.Logger
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	_ = postgres.Close(e.db)
	_ = e.logger.Sync()
}

func (e *env) app() *app.App {
	deps := app.Deps{DB: e.db, Cache: cache.Disabled(), Logger: e.logger}
	if e.store != nil {
		deps.Cache = cache.New(e.store, e.cfg.Cache.KeyPrefix, metrics.CacheRequestsTotal, e.logger.Named("cache"))
		deps.CachePinger = e.store
	}
	return app.New(e.cfg, deps)
}

func (f *globalFlags) loadConfig() (config.Config, error) {
	if f.sqlite != "" {
		var cfg config.Config
		cfg.ApplyDefaults()
		return cfg, nil
	}
	cfg, err := config.Load(f.env)
	if err != nil {
		if f.dsn == "" {
			return config.Config{}, err
		}
		cfg = config.Config{}
		cfg.ApplyDefaults()
	}
	if f.dsn != "" {
		cfg.Postgres.DSN = f.dsn
	}
	return cfg, nil
}

func (f *globalFlags) open(ctx context.Context) (*env, error) {
	level := "info"
	if f.verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger("local", level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	if f.sqlite != "" {
		db, err = postgres.OpenSQLite(f.sqlite, logger.Named("gorm"))
	} else {
		db, err = postgres.Open(postgres.Config{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
			SlowQuery:    time.Duration(cfg.Postgres.SlowQueryMs) * time.Millisecond,
		}, logger.Named("gorm"))
	}
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, db: db, logger: logger}

	if f.sqlite == "" && cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			e.close()
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			e.close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		e.store = store
	}
	return e, nil
}

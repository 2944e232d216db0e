package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the offerd configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Orders    OrdersConfig    `yaml:"orders"`
	Discounts DiscountsConfig `yaml:"discounts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// PostgresConfig holds relational database settings.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	SlowQueryMs  int    `yaml:"slow_query_ms"`
}

// CacheConfig holds Redis cache settings.
type CacheConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Addrs            []string  `yaml:"addrs"`
	Password         string    `yaml:"password"`
	DB               int       `yaml:"db"`
	KeyPrefix        string    `yaml:"key_prefix"`
	ReadinessTimeout int       `yaml:"readiness_timeout_sec"`
	TTL              TTLConfig `yaml:"ttl"`
}

// TTLConfig holds per-entity cache lifetimes in seconds.
type TTLConfig struct {
	CourseSec  int `yaml:"course_sec"`
	CouponSec  int `yaml:"coupon_sec"`
	OrderSec   int `yaml:"order_sec"`
	PriceSec   int `yaml:"price_sec"`
	ProfileSec int `yaml:"profile_sec"`
}

// Course returns the course cache TTL.
func (t TTLConfig) Course() time.Duration { return time.Duration(t.CourseSec) * time.Second }

// Coupon returns the coupon cache TTL.
func (t TTLConfig) Coupon() time.Duration { return time.Duration(t.CouponSec) * time.Second }

// Order returns the order cache TTL.
func (t TTLConfig) Order() time.Duration { return time.Duration(t.OrderSec) * time.Second }

// Price returns the price quote cache TTL.
func (t TTLConfig) Price() time.Duration { return time.Duration(t.PriceSec) * time.Second }

// Profile returns the user profile cache TTL.
func (t TTLConfig) Profile() time.Duration { return time.Duration(t.ProfileSec) * time.Second }

// OrdersConfig holds order lifecycle settings.
type OrdersConfig struct {
	PaymentTimeoutMin int `yaml:"payment_timeout_min"`
	SweepIntervalSec  int `yaml:"sweep_interval_sec"` // 0 disables the background sweeper
}

// DiscountsConfig holds agent discount settings.
type DiscountsConfig struct {
	DefaultValidHours int `yaml:"default_valid_hours"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Postgres.MaxOpenConns <= 0 {
		c.Postgres.MaxOpenConns = 20
	}
	if c.Postgres.MaxIdleConns <= 0 {
		c.Postgres.MaxIdleConns = 5
	}
	if c.Postgres.SlowQueryMs <= 0 {
		c.Postgres.SlowQueryMs = 1000
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "offerd:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	c.Cache.TTL.applyDefaults()
	if c.Orders.PaymentTimeoutMin <= 0 {
		c.Orders.PaymentTimeoutMin = 30
	}
	if c.Orders.SweepIntervalSec < 0 {
		c.Orders.SweepIntervalSec = 0
	}
	if c.Discounts.DefaultValidHours <= 0 {
		c.Discounts.DefaultValidHours = 24
	}
}

func (t *TTLConfig) applyDefaults() {
	if t.CourseSec <= 0 {
		t.CourseSec = 3600
	}
	if t.CouponSec <= 0 {
		t.CouponSec = 1800
	}
	if t.OrderSec <= 0 {
		t.OrderSec = 1800
	}
	if t.PriceSec <= 0 {
		t.PriceSec = 300
	}
	if t.ProfileSec <= 0 {
		t.ProfileSec = 3600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
		return fmt.Errorf("postgres.max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Postgres.MaxIdleConns, c.Postgres.MaxOpenConns)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Discounts.DefaultValidHours > 168 {
		return fmt.Errorf("discounts.default_valid_hours must be at most 168, got %d", c.Discounts.DefaultValidHours)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

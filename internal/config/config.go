package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	StoreBackend        string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DBMaxConnLifetime   time.Duration `mapstructure:"DB_MAX_CONN_LIFETIME"`
	DBMaxConnIdleTime   time.Duration `mapstructure:"DB_MAX_CONN_IDLE_TIME"`
	DBHealthCheckPeriod time.Duration `mapstructure:"DB_HEALTH_CHECK_PERIOD"`
	MigrationsDir       string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	RedisKeyPrefix      string        `mapstructure:"REDIS_KEY_PREFIX"`
	AdvisoryURL         string        `mapstructure:"ADVISORY_URL"`
	AdvisoryTimeout     time.Duration `mapstructure:"ADVISORY_TIMEOUT"`
	AdvisoryQuietPeriod time.Duration `mapstructure:"ADVISORY_QUIET_PERIOD"`
	HospitalTimezone    string        `mapstructure:"HOSPITAL_TIMEZONE"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"STORE_BACKEND",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_MAX_CONN_LIFETIME",
	"DB_MAX_CONN_IDLE_TIME",
	"DB_HEALTH_CHECK_PERIOD",
	"MIGRATIONS_DIR",
	"REDIS_URL",
	"REDIS_KEY_PREFIX",
	"ADVISORY_URL",
	"ADVISORY_TIMEOUT",
	"ADVISORY_QUIET_PERIOD",
	"HOSPITAL_TIMEZONE",
	"REQUEST_TIMEOUT",
	"CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "1h")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "30m")
	v.SetDefault("DB_HEALTH_CHECK_PERIOD", "1m")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("REDIS_KEY_PREFIX", "ams")
	v.SetDefault("ADVISORY_TIMEOUT", "10s")
	v.SetDefault("ADVISORY_QUIET_PERIOD", "600ms")
	v.SetDefault("HOSPITAL_TIMEZONE", "UTC")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	switch {
	case cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "":
		return nil, fmt.Errorf("DATABASE_URL is required")
	case cfg.StoreBackend == BackendRedis && cfg.RedisURL == "":
		return nil, fmt.Errorf("REDIS_URL is required when STORE_BACKEND is %q", BackendRedis)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AdvisoryEnabled reports whether an advisory service is configured.
func (c *Config) AdvisoryEnabled() bool {
	return strings.TrimSpace(c.AdvisoryURL) != ""
}

// Location resolves HOSPITAL_TIMEZONE. All calendar-date math uses it.
func (c *Config) Location() (*time.Location, error) {
	name := c.HospitalTimezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("HOSPITAL_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
		if c.DBMinConns < 0 || c.DBMaxConns <= 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) must satisfy 0 <= min <= max, max > 0", c.DBMinConns, c.DBMaxConns)
		}
		if c.DBMaxConnLifetime < 0 || c.DBMaxConnIdleTime < 0 || c.DBHealthCheckPeriod < 0 {
			return fmt.Errorf("DB_MAX_CONN_LIFETIME, DB_MAX_CONN_IDLE_TIME and DB_HEALTH_CHECK_PERIOD must not be negative")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is %q", BackendRedis)
		}
		if strings.TrimSpace(c.RedisKeyPrefix) == "" {
			return fmt.Errorf("REDIS_KEY_PREFIX must not be empty")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendRedis, c.StoreBackend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.AdvisoryEnabled() {
		if c.AdvisoryTimeout <= 0 {
			return fmt.Errorf("ADVISORY_TIMEOUT must be positive, got %s", c.AdvisoryTimeout)
		}
		if c.AdvisoryQuietPeriod < 0 {
			return fmt.Errorf("ADVISORY_QUIET_PERIOD must not be negative, got %s", c.AdvisoryQuietPeriod)
		}
	}

	return nil
}

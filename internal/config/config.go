// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store backends.
const (
	TokenStoreFile     = "file"
	TokenStoreRedis    = "redis"
	TokenStorePostgres = "postgres"
	TokenStoreMemory   = "memory"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything the storefront client needs. It is built once by the
// caller and passed to constructors; nothing in this module reads it from a global.
type Config struct {
	App       AppConfig
	API       APIConfig
	Session   SessionConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Cart      CartConfig
	Catalog   CatalogConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
}

// APIConfig describes how to reach the remote catalog service
type APIConfig struct {
	BaseURL          string
	RequestTimeout   time.Duration
	RetryMaxAttempts int
	RateLimit        float64 // requests per second, 0 disables limiting
	RateBurst        int
	BreakerFailures  int
	BreakerTimeout   time.Duration
}

// SessionConfig controls where the bearer token is persisted
type SessionConfig struct {
	TokenStore string
	TokenPath  string
	KeyPrefix  string
	Passphrase string
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig contains the Postgres connection string
type DatabaseConfig struct {
	URL string
}

// CartConfig contains cart persistence and pricing settings
type CartConfig struct {
	Persist   bool
	SessionID string
	TaxRate   float64
}

// CatalogConfig contains catalog presentation settings
type CatalogConfig struct {
	LowStockThreshold int
	FixturesPath      string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// TelemetryConfig contains OpenTelemetry exporter settings
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "storefront",
			Environment: "production",
		},
		API: APIConfig{
			BaseURL:          "http://localhost:8082",
			RequestTimeout:   10 * time.Second,
			RetryMaxAttempts: 3,
			RateLimit:        20,
			RateBurst:        10,
			BreakerFailures:  5,
			BreakerTimeout:   30 * time.Second,
		},
		Session: SessionConfig{
			TokenStore: TokenStoreFile,
			TokenPath:  defaultTokenPath(),
			KeyPrefix:  "storefront",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Cart: CartConfig{
			SessionID: "local",
			TaxRate:   0.08,
		},
		Catalog: CatalogConfig{
			LowStockThreshold: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "storefront-client",
		},
	}
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	d := Default()
	env := getEnv("STOREFRONT_ENV", d.App.Environment)

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("STOREFRONT_APP_NAME", d.App.Name),
			Environment: env,
			Debug:       env == "development" || getEnvAsBool("STOREFRONT_DEBUG", false) || os.Getenv("VITE_DEBUG") == "true",
		},
		API: APIConfig{
			BaseURL:          getEnv("STOREFRONT_API_BASE_URL", getEnv("VITE_API_BASE_URL", d.API.BaseURL)),
			RequestTimeout:   getEnvAsDuration("STOREFRONT_REQUEST_TIMEOUT", d.API.RequestTimeout),
			RetryMaxAttempts: getEnvAsInt("STOREFRONT_RETRY_MAX_ATTEMPTS", d.API.RetryMaxAttempts),
			RateLimit:        getEnvAsFloat("STOREFRONT_RATE_LIMIT", d.API.RateLimit),
			RateBurst:        getEnvAsInt("STOREFRONT_RATE_BURST", d.API.RateBurst),
			BreakerFailures:  getEnvAsInt("STOREFRONT_BREAKER_FAILURES", d.API.BreakerFailures),
			BreakerTimeout:   getEnvAsDuration("STOREFRONT_BREAKER_TIMEOUT", d.API.BreakerTimeout),
		},
		Session: SessionConfig{
			TokenStore: strings.ToLower(getEnv("STOREFRONT_TOKEN_STORE", d.Session.TokenStore)),
			TokenPath:  getEnv("STOREFRONT_TOKEN_PATH", d.Session.TokenPath),
			KeyPrefix:  getEnv("STOREFRONT_TOKEN_KEY_PREFIX", d.Session.KeyPrefix),
			Passphrase: getEnv("STOREFRONT_TOKEN_PASSPHRASE", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("STOREFRONT_REDIS_ADDR", d.Redis.Addr),
			Password: getEnv("STOREFRONT_REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("STOREFRONT_REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			URL: getEnv("STOREFRONT_DATABASE_URL", getEnv("DATABASE_URL", "")),
		},
		Cart: CartConfig{
			Persist:   getEnvAsBool("STOREFRONT_CART_PERSIST", false),
			SessionID: getEnv("STOREFRONT_SESSION_ID", d.Cart.SessionID),
			TaxRate:   getEnvAsFloat("STOREFRONT_TAX_RATE", d.Cart.TaxRate),
		},
		Catalog: CatalogConfig{
			LowStockThreshold: getEnvAsInt("STOREFRONT_LOW_STOCK_THRESHOLD", d.Catalog.LowStockThreshold),
			FixturesPath:      getEnv("STOREFRONT_FIXTURES_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("STOREFRONT_LOG_LEVEL", d.Logging.Level),
			Format: getEnv("STOREFRONT_LOG_FORMAT", d.Logging.Format),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("STOREFRONT_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("STOREFRONT_SERVICE_NAME", d.Telemetry.ServiceName),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: API base URL %q must be an absolute http(s) URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.API.RetryMaxAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1", ErrInvalidConfig)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit cannot be negative", ErrInvalidConfig)
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		return fmt.Errorf("%w: rate burst must be at least 1 when rate limiting is enabled", ErrInvalidConfig)
	}
	if c.API.BreakerFailures < 1 {
		return fmt.Errorf("%w: breaker failure threshold must be at least 1", ErrInvalidConfig)
	}

	switch c.Session.TokenStore {
	case TokenStoreFile:
		if c.Session.TokenPath == "" {
			return fmt.Errorf("%w: token path is required for the file token store", ErrInvalidConfig)
		}
	case TokenStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis address is required for the redis token store", ErrInvalidConfig)
		}
	case TokenStorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database URL is required for the postgres token store", ErrInvalidConfig)
		}
	case TokenStoreMemory:
	default:
		return fmt.Errorf("%w: unknown token store %q", ErrInvalidConfig, c.Session.TokenStore)
	}

	if c.Cart.Persist {
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis address is required for cart persistence", ErrInvalidConfig)
		}
		if c.Cart.SessionID == "" {
			return fmt.Errorf("%w: session id is required for cart persistence", ErrInvalidConfig)
		}
	}
	if c.Cart.TaxRate < 0 {
		return fmt.Errorf("%w: tax rate cannot be negative", ErrInvalidConfig)
	}
	if c.Catalog.LowStockThreshold < 0 {
		return fmt.Errorf("%w: low stock threshold cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// IsDevelopment returns true if the client runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Session.TokenStore == TokenStoreRedis || c.Cart.Persist
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-token"
	}
	return filepath.Join(dir, "storefront", "token")
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

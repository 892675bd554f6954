package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: durable usage record log. Nil means in-memory scoring only.
	Providers     ProvidersConfig
	Routing       RoutingConfig
	Breaker       BreakerConfig
	Tracker       TrackerConfig
	Execution     ExecutionConfig
	Baselines     map[models.ContentType]float64
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProvidersConfig holds per-provider credentials and endpoints.
// A provider whose credential is empty is excluded from the catalog at
// startup; exclusion is logged and non-fatal.
type ProvidersConfig struct {
	OpenAI    ProviderCredentials
	Anthropic ProviderCredentials
	Stability ProviderCredentials
	Replicate ProviderCredentials
}

// ProviderCredentials holds credential and endpoint settings for one provider
type ProviderCredentials struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// RoutingConfig holds selector and decision cache configuration
type RoutingConfig struct {
	// CacheTTL bounds how long a routing decision may be served from cache
	CacheTTL time.Duration

	// CacheMaxSize caps the number of cached decisions
	CacheMaxSize int

	// FallbackDepth caps the number of fallback candidates after the primary
	FallbackDepth int

	// DefaultTier is used when a caller does not specify a service tier
	DefaultTier models.ServiceTier
}

// BreakerConfig holds circuit breaker policy
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that disqualifies a provider
	FailureThreshold int

	// FailureCooldown is how long a provider stays disqualified after
	// crossing the failure threshold
	FailureCooldown time.Duration

	// RateLimitCooldown is how long a provider stays disqualified after an
	// explicit rate-limit response
	RateLimitCooldown time.Duration
}

// TrackerConfig holds performance tracker policy
type TrackerConfig struct {
	// Window is the rolling window over which aggregates are kept
	Window time.Duration

	// RefreshInterval is how often aggregates are recomputed from the durable log
	RefreshInterval time.Duration

	// LatencyCeiling normalizes response times for scoring; latencies at or
	// above the ceiling score zero on the latency component
	LatencyCeiling time.Duration
}

// ExecutionConfig holds per-content-type attempt timeouts
type ExecutionConfig struct {
	TextTimeout  time.Duration
	ImageTimeout time.Duration
	VideoTimeout time.Duration
}

// TimeoutFor returns the attempt timeout for a content type
func (e ExecutionConfig) TimeoutFor(ct models.ContentType) time.Duration {
	switch ct {
	case models.ContentImage:
		return e.ImageTimeout
	case models.ContentVideo:
		return e.VideoTimeout
	default:
		return e.TextTimeout
	}
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	defaultTier, err := models.ParseServiceTier(getEnv("DEFAULT_SERVICE_TIER", string(models.TierFree)))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SERVICE_TIER: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			OpenAI: ProviderCredentials{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			},
			Anthropic: ProviderCredentials{
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Timeout: getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
			},
			Stability: ProviderCredentials{
				APIKey:  getEnv("STABILITY_API_KEY", ""),
				BaseURL: getEnv("STABILITY_BASE_URL", "https://api.stability.ai"),
				Timeout: getEnvAsDuration("STABILITY_TIMEOUT", 120*time.Second),
			},
			Replicate: ProviderCredentials{
				APIKey:  getEnv("REPLICATE_API_TOKEN", ""),
				BaseURL: getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
				Timeout: getEnvAsDuration("REPLICATE_TIMEOUT", 300*time.Second),
			},
		},
		Routing: RoutingConfig{
			CacheTTL:      getEnvAsDuration("CACHE_TTL_SECONDS", 300*time.Second),
			CacheMaxSize:  getEnvAsInt("CACHE_MAX_SIZE", 256),
			FallbackDepth: getEnvAsInt("FALLBACK_DEPTH", 3),
			DefaultTier:   defaultTier,
		},
		Breaker: BreakerConfig{
			FailureThreshold:  getEnvAsInt("CIRCUIT_BREAKER_THRESHOLD", 3),
			FailureCooldown:   getEnvAsDuration("CIRCUIT_BREAKER_COOLDOWN_SECONDS", 600*time.Second),
			RateLimitCooldown: getEnvAsDuration("RATE_LIMIT_COOLDOWN_SECONDS", 300*time.Second),
		},
		Tracker: TrackerConfig{
			Window:          getEnvAsDuration("TRACKER_WINDOW", 24*time.Hour),
			RefreshInterval: getEnvAsDuration("TRACKER_REFRESH_INTERVAL", 60*time.Second),
			LatencyCeiling:  getEnvAsDuration("TRACKER_LATENCY_CEILING", 30*time.Second),
		},
		Execution: ExecutionConfig{
			TextTimeout:  getEnvAsDuration("TEXT_GENERATION_TIMEOUT", 60*time.Second),
			ImageTimeout: getEnvAsDuration("IMAGE_GENERATION_TIMEOUT", 120*time.Second),
			VideoTimeout: getEnvAsDuration("VIDEO_GENERATION_TIMEOUT", 300*time.Second),
		},
		Baselines: map[models.ContentType]float64{
			models.ContentText:  getEnvAsFloat("BASELINE_COST_TEXT", 0.005),
			models.ContentImage: getEnvAsFloat("BASELINE_COST_IMAGE", 0.04),
			models.ContentVideo: getEnvAsFloat("BASELINE_COST_VIDEO", 0.50),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("MONITORING_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit breaker threshold must be at least 1")
	}
	if c.Routing.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Routing.FallbackDepth < 0 {
		return fmt.Errorf("fallback depth cannot be negative")
	}
	if c.Tracker.Window <= 0 {
		return fmt.Errorf("tracker window must be positive")
	}
	for ct, baseline := range c.Baselines {
		if baseline < 0 {
			return fmt.Errorf("baseline cost for %s cannot be negative", ct)
		}
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	// Provider validation (at least one credential required in production)
	if c.IsProduction() {
		if c.Providers.OpenAI.APIKey == "" &&
			c.Providers.Anthropic.APIKey == "" &&
			c.Providers.Stability.APIKey == "" &&
			c.Providers.Replicate.APIKey == "" {
			return fmt.Errorf("at least one provider must be configured in production")
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads the optional usage log database from DATABASE_URL
// or DB_* env vars. Returns nil when neither is set: the engine then runs
// with in-memory scoring only.
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "engine"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "engine"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration parses a duration env var. Bare integers are interpreted
// as seconds so CACHE_TTL_SECONDS=300 and CACHE_TTL_SECONDS=5m both work.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

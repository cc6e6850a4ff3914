package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	OTEL       OTELConfig
	S3         S3Config
	OpenRouter OpenRouterConfig
	WhatsApp   WhatsAppConfig
	Billing    BillingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Environment     string
	MaxUploadSizeMB int64
}

// StoreConfig selects where customers, invoices and the rest of the state live
type StoreConfig struct {
	Driver string // memory or mongo
	Seed   bool   // load the demo dataset into an empty memory store
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// JWTConfig holds staff session token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	InstanceID     string
	Token          string
}

// S3Config holds S3-compatible object storage configuration
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
}

// OpenRouterConfig holds OpenRouter API configuration for template drafting
type OpenRouterConfig struct {
	APIKey string
	Model  string
}

// WhatsAppConfig holds the outbound message gateway configuration.
// An empty BaseURL selects the logging sender.
type WhatsAppConfig struct {
	BaseURL string
	Token   string
}

// BillingConfig holds the billing engine policy
type BillingConfig struct {
	TimeZone        string
	CheckoutBaseURL string
	BillSuspended   bool
	BillInactive    bool
	// AutoGenerateCron runs bulk generation on a schedule; empty disables it
	AutoGenerateCron string
	AutoIsolate      bool
	AutoIsolateTime  string // HH:MM in TimeZone
	GraceDays        int
	GatewayDelay     time.Duration
	WebhookSecret    string
	DashboardTTL     time.Duration
	IdempotencyTTL   time.Duration
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("APP_ENV", "development"),
			MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 5),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
			Seed:   getEnvAsBool("STORE_SEED", true),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "phbiling"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_TOKEN_EXPIRY", 12*time.Hour),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "phbiling-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "3.0.0"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
		S3: S3Config{
			Endpoint: getEnv("S3_ENDPOINT", ""),
			Region:   getEnv("S3_REGION", "us-east-1"),
			Bucket:   getEnv("S3_BUCKET", "phbiling"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey: getEnv("OPENROUTER_API_KEY", ""),
			Model:  getEnv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL: getEnv("WHATSAPP_GATEWAY_URL", ""),
			Token:   getEnv("WHATSAPP_GATEWAY_TOKEN", ""),
		},
		Billing: BillingConfig{
			TimeZone:         getEnv("BILLING_TIMEZONE", "Asia/Jakarta"),
			CheckoutBaseURL:  strings.TrimRight(getEnv("CHECKOUT_BASE_URL", "https://checkout.phbiling.com"), "/"),
			BillSuspended:    getEnvAsBool("BILLING_BILL_SUSPENDED", true),
			BillInactive:     getEnvAsBool("BILLING_BILL_INACTIVE", false),
			AutoGenerateCron: getEnv("BILLING_AUTO_GENERATE_CRON", ""),
			AutoIsolate:      getEnvAsBool("AUTO_ISOLATE_ENABLED", true),
			AutoIsolateTime:  getEnv("AUTO_ISOLATE_TIME", "00:00"),
			GraceDays:        int(getEnvAsInt64("AUTO_ISOLATE_GRACE_DAYS", 3)),
			GatewayDelay:     getEnvAsDuration("CHECKOUT_SIMULATED_DELAY", 2500*time.Millisecond),
			WebhookSecret:    getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			DashboardTTL:     getEnvAsDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
			IdempotencyTTL:   getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Store.Driver != StoreMemory && c.Store.Driver != StoreMongo {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StoreMongo, c.Store.Driver)
	}
	if _, err := time.LoadLocation(c.Billing.TimeZone); err != nil {
		return fmt.Errorf("BILLING_TIMEZONE %q: %w", c.Billing.TimeZone, err)
	}
	if _, _, err := c.Billing.IsolateClock(); err != nil {
		return err
	}
	return nil
}

// IsolateClock parses AutoIsolateTime into hour and minute
func (b BillingConfig) IsolateClock() (int, int, error) {
	t, err := time.Parse("15:04", b.AutoIsolateTime)
	if err != nil {
		return 0, 0, fmt.Errorf("AUTO_ISOLATE_TIME must be HH:MM, got %q", b.AutoIsolateTime)
	}
	return t.Hour(), t.Minute(), nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Role catalog configuration
	Catalog CatalogConfig

	// Tenant directory configuration
	Directory DirectoryConfig

	// Decision cache configuration
	Cache CacheConfig

	// Audit recorder configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CatalogConfig selects where role definitions come from. An empty Path
// means the built-in catalog.
type CatalogConfig struct {
	Path  string
	Watch bool
}

// DirectoryConfig holds tenant directory settings
type DirectoryConfig struct {
	Type         string // memory or postgres
	PostgresURL  string
	SeedFile     string
	SyncSchedule string
}

// CacheConfig holds decision cache settings
type CacheConfig struct {
	Enabled    bool
	Backend    string // memory or redis
	TTL        time.Duration
	MaxEntries int
	RedisURL   string
}

// AuditConfig holds audit recorder settings
type AuditConfig struct {
	QueueSize int
	FileDir   string
	// Database writes audit records to the directory's PostgreSQL database
	Database bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Catalog:       loadCatalogConfig(),
		Directory:     loadDirectoryConfig(),
		Cache:         loadCacheConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WARDEN_HOST", "0.0.0.0"),
		Port:            getEnv("WARDEN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Path:  getEnv("WARDEN_CATALOG_PATH", ""),
		Watch: getEnvBool("WARDEN_CATALOG_WATCH", false),
	}
}

func loadDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		Type:         strings.ToLower(getEnv("WARDEN_DIRECTORY_TYPE", "memory")),
		PostgresURL:  getEnv("WARDEN_POSTGRES_URL", ""),
		SeedFile:     getEnv("WARDEN_DIRECTORY_SEED", ""),
		SyncSchedule: getEnv("WARDEN_DIRECTORY_SYNC_SCHEDULE", "@every 30s"),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:    getEnvBool("WARDEN_CACHE_ENABLED", true),
		Backend:    strings.ToLower(getEnv("WARDEN_CACHE_BACKEND", "memory")),
		TTL:        getEnvDuration("WARDEN_CACHE_TTL", 5*time.Minute),
		MaxEntries: getEnvInt("WARDEN_CACHE_SIZE", 10000),
		RedisURL:   getEnv("WARDEN_REDIS_URL", ""),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		QueueSize: getEnvInt("WARDEN_AUDIT_QUEUE_SIZE", 4096),
		FileDir:   getEnv("WARDEN_AUDIT_FILE_DIR", ""),
		Database:  getEnvBool("WARDEN_AUDIT_DB", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("WARDEN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("WARDEN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("WARDEN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("WARDEN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("WARDEN_OTEL_SERVICE_NAME", "warden"),
		OTelServiceVersion: getEnv("WARDEN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("WARDEN_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("WARDEN_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Catalog.Watch && c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required when catalog watching is enabled")
	}

	switch c.Directory.Type {
	case "memory":
	case "postgres":
		if c.Directory.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres directory")
		}
		if c.Directory.SyncSchedule == "" {
			return fmt.Errorf("sync schedule is required for postgres directory")
		}
	default:
		return fmt.Errorf("invalid directory type: %s (must be memory or postgres)", c.Directory.Type)
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory":
			if c.Cache.MaxEntries <= 0 {
				return fmt.Errorf("cache size must be positive")
			}
		case "redis":
			if c.Cache.RedisURL == "" {
				return fmt.Errorf("redis URL is required for redis cache")
			}
		default:
			return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache TTL must be positive")
		}
	}

	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit queue size must be positive")
	}
	if c.Audit.Database && c.Directory.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required for database audit")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

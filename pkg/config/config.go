package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/database"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database database.Config

	// Storage configuration
	Storage storage.Config

	// Principal cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Access rules, from DOCVAULT_ACCESS_RULES_FILE when set
	Access AccessRules
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// HideForbidden answers denied requests with 404 instead of 403
	HideForbidden bool
}

// CacheConfig holds principal cache settings. Without a Redis URL the
// cache is per process.
type CacheConfig struct {
	Enabled       bool
	Size          int
	TTL           time.Duration
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// OTel returns the OpenTelemetry settings in the form InitOTel takes
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
	}
}

// LoadConfig loads configuration from environment variables and the
// access rules file
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
		Access:        DefaultAccessRules(),
	}

	if path := getEnv("DOCVAULT_ACCESS_RULES_FILE", ""); path != "" {
		rules, err := LoadAccessRules(path)
		if err != nil {
			return nil, err
		}
		cfg.Access = *rules
	}
	cfg.Access.applyLimits(&cfg.Storage)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("DOCVAULT_HOST", "0.0.0.0"),
		Port:            getEnv("DOCVAULT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DOCVAULT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DOCVAULT_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("DOCVAULT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DOCVAULT_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("DOCVAULT_HEALTH_PORT", "9090"),
		HideForbidden:   getEnvBool("DOCVAULT_HIDE_FORBIDDEN", false),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() database.Config {
	return database.Config{
		PrimaryURL:  getEnv("DOCVAULT_DATABASE_URL", ""),
		ReplicaURLs: database.ParseReplicaURLs(getEnv("DOCVAULT_DATABASE_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("DOCVAULT_DATABASE_MAX_CONNS", 20),
		MinConns:    getEnvInt("DOCVAULT_DATABASE_MIN_CONNS", 2),
		Timeout:     getEnvDuration("DOCVAULT_DATABASE_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("DOCVAULT_DATABASE_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("DOCVAULT_DATABASE_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("DOCVAULT_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}
	if fsRoot := getEnv("DOCVAULT_FILESYSTEM_ROOT", ""); fsRoot != "" {
		cfg.FilesystemRoot = fsRoot
	}

	cfg.S3Endpoint = getEnv("DOCVAULT_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("DOCVAULT_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("DOCVAULT_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("DOCVAULT_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("DOCVAULT_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("DOCVAULT_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)
	cfg.S3CreateBucket = getEnvBool("DOCVAULT_S3_CREATE_BUCKET", cfg.S3CreateBucket)

	if size := getEnvInt64("DOCVAULT_MAX_UPLOAD_SIZE", 0); size > 0 {
		cfg.MaxUploadSize = size
	}
	if size := getEnvInt64("DOCVAULT_MAX_REPLACE_SIZE", 0); size > 0 {
		cfg.MaxReplaceSize = size
	}
	cfg.ScanBudget = getEnvDuration("DOCVAULT_STORAGE_SCAN_BUDGET", cfg.ScanBudget)

	return cfg
}

// loadCacheConfig loads principal cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       getEnvBool("DOCVAULT_CACHE_ENABLED", true),
		Size:          getEnvInt("DOCVAULT_CACHE_SIZE", 10000),
		TTL:           getEnvDuration("DOCVAULT_CACHE_TTL", time.Minute),
		RedisURL:      getEnv("DOCVAULT_REDIS_URL", ""),
		RedisPassword: getEnv("DOCVAULT_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("DOCVAULT_REDIS_DB", 0),
		RedisPrefix:   getEnv("DOCVAULT_REDIS_PREFIX", "docvault:principal:"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           strings.ToLower(getEnv("DOCVAULT_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("DOCVAULT_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DOCVAULT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DOCVAULT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DOCVAULT_OTEL_SERVICE_NAME", "docvault"),
		OTelServiceVersion: getEnv("DOCVAULT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DOCVAULT_OTEL_INSECURE", true),
	}
}

// RBACOptions returns the oracle options selected by the access rules
func (c *Config) RBACOptions() rbac.Options {
	return rbac.Options{LegacyUnassignedSuperUser: c.Access.LegacyUnassignedSuperUser}
}

// AccessConfig returns the filter builder configuration
func (c *Config) AccessConfig() access.Config {
	return c.Access.Access
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("database URL is required (DOCVAULT_DATABASE_URL)")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min connections (%d) exceed max connections (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	switch c.Storage.Type {
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be filesystem or s3)", c.Storage.Type)
	}
	if c.Storage.MaxUploadSize <= 0 || c.Storage.MaxReplaceSize <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}
	if c.Storage.ScanBudget <= 0 {
		return fmt.Errorf("storage scan budget must be positive")
	}

	if c.Cache.Enabled && c.Cache.Size <= 0 && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache size must be positive when the in-process cache is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return c.Access.Validate()
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

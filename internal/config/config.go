// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	Mapping   MappingConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Notify    NotifyConfig
	Archive   ArchiveConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds synchronous API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL selects the store: postgres://... or sqlite://path/to/file.db
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate creates the schema on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// Store drivers returned by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Driver returns the store driver and its data source for URL.
func (c DatabaseConfig) Driver() (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		return DriverPostgres, c.URL, nil
	case strings.HasPrefix(c.URL, "sqlite://"):
		path := strings.TrimPrefix(c.URL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite URL has no path")
		}
		return DriverSQLite, path, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme (want postgres:// or sqlite://)")
	}
}

// UploadConfig holds upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single upload operation (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// PersistRetries is how many times a failed insert is retried (default: 0)
	PersistRetries int `env:"UPLOAD_PERSIST_RETRIES" default:"0"`

	// RetryDelay is the base delay between insert retries (default: 250ms)
	RetryDelay time.Duration `env:"UPLOAD_RETRY_DELAY" default:"250ms"`
}

// MappingConfig holds column mapping settings.
type MappingConfig struct {
	// SynonymsFile is an optional YAML file of extra header synonyms
	SynonymsFile string `env:"MAPPING_SYNONYMS_FILE"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// OperatorHeader names the header carrying the acting user (default: X-Operator)
	OperatorHeader string `env:"OPERATOR_HEADER" default:"X-Operator"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// NotifyConfig holds upload summary notification settings.
type NotifyConfig struct {
	// AMQPURL enables the RabbitMQ notifier when set
	AMQPURL string `env:"AMQP_URL" envAlt:"RABBITMQ_URL"`

	// Exchange is the topic exchange summaries are published to
	Exchange string `env:"NOTIFY_EXCHANGE" default:"upload_summaries"`

	// RoutingPrefix prefixes the upload id in the routing key
	RoutingPrefix string `env:"NOTIFY_ROUTING_PREFIX" default:"upload"`
}

// ArchiveConfig holds original-file archiving settings.
type ArchiveConfig struct {
	// Bucket enables archiving when set
	Bucket string `env:"S3_BUCKET"`

	// Region is the bucket region (default: auto)
	Region string `env:"S3_REGION" default:"auto"`

	// Endpoint overrides the S3 endpoint for R2 or MinIO
	Endpoint string `env:"S3_ENDPOINT"`

	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`

	// Prefix is prepended to every object key (default: uploads)
	Prefix string `env:"S3_PREFIX" default:"uploads"`

	// PathStyle forces path-style addressing (default: false)
	PathStyle bool `env:"S3_PATH_STYLE" default:"false"`
}

// RetentionConfig holds upload log retention settings.
type RetentionConfig struct {
	// MaxAge deletes upload logs older than this; 0 keeps them forever (default: 0)
	MaxAge time.Duration `env:"UPLOAD_LOG_RETENTION" default:"0s"`

	// CheckInterval is how often the purge runs (default: 24h)
	CheckInterval time.Duration `env:"UPLOAD_LOG_RETENTION_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

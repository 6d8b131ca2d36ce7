// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Mongo       MongoConfig
	Attachments AttachmentConfig
	Import      ImportConfig
	Cache       CacheConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests. Imports of large
	// parts lists run inside the request, so this is generous (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is one of: postgres, mongo (default: postgres)
	Backend string `env:"STORE_BACKEND" default:"postgres"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres backend.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string        `env:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database string        `env:"MONGO_DATABASE" default:"plm_import"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT" default:"10s"`
}

// AttachmentConfig selects where uploaded parts-list files are kept.
type AttachmentConfig struct {
	// Backend is one of: fs, minio, s3 (default: fs)
	Backend string `env:"ATTACHMENT_BACKEND" default:"fs"`

	// Dir is the root directory for the fs backend
	Dir string `env:"ATTACHMENT_DIR" default:"./data/attachments"`

	Endpoint  string `env:"ATTACHMENT_ENDPOINT"`
	Region    string `env:"ATTACHMENT_REGION" default:"us-east-1"`
	Bucket    string `env:"ATTACHMENT_BUCKET" default:"plm-import"`
	AccessKey string `env:"ATTACHMENT_ACCESS_KEY"`
	SecretKey string `env:"ATTACHMENT_SECRET_KEY"`
	UseSSL    bool   `env:"ATTACHMENT_USE_SSL" default:"false"`
}

// ImportConfig holds the defaults an import run needs.
type ImportConfig struct {
	// DefaultCompany owns every BOM tree created by an import. Checked at
	// import time, not at startup, so the server can run without it.
	DefaultCompany string `env:"IMPORT_DEFAULT_COMPANY"`

	// DefaultCurrency is the currency of DefaultCompany
	DefaultCurrency string `env:"IMPORT_DEFAULT_CURRENCY"`

	// DefaultUOM is the stock unit given to items created without one (default: Nos)
	DefaultUOM string `env:"IMPORT_DEFAULT_UOM" default:"Nos"`

	// RootItemGroup is the parent of item groups created on demand
	RootItemGroup string `env:"IMPORT_ROOT_ITEM_GROUP" default:"All Item Groups"`

	// MaxFileSize is the maximum accepted attachment size in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the maximum number of imports running at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single import run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
}

// CacheConfig holds catalog lookup cache settings.
type CacheConfig struct {
	// Size is the number of catalog lookups kept in memory; 0 disables caching
	Size int `env:"CATALOG_CACHE_SIZE" default:"1024"`

	// TTL bounds how long a cached lookup is trusted (default: 5m)
	TTL time.Duration `env:"CATALOG_CACHE_TTL" default:"5m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}

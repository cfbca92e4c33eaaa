// Package config loads pipeline configuration from the environment.
//
// Values come from environment variables (optionally seeded from an env
// file, see LoadEnvFiles) with defaults from struct tags. The result is
// validated once, in main, and handed to components as plain structs; no
// other package reads the environment.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Ingest   IngestConfig
	Images   ImagesConfig
	Bucket   BucketConfig
	Sync     SyncConfig
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// IngestConfig holds defaults for validate, upload and merge. Command-line
// flags override them.
type IngestConfig struct {
	// Concurrency is the number of parallel uploads (default: 4)
	Concurrency int `env:"XA_CONCURRENCY" default:"4"`

	// MinImageEdge is the minimum shortest edge of an image in pixels (default: 1600)
	MinImageEdge int `env:"XA_MIN_IMAGE_EDGE" default:"1600"`

	// Strict turns advisory issues into errors (default: false)
	Strict bool `env:"XA_STRICT" default:"false"`

	// Replace re-uploads files whose content changed (default: false)
	Replace bool `env:"XA_REPLACE" default:"false"`

	// Recursive walks subdirectories of directory file specs (default: false)
	Recursive bool `env:"XA_RECURSIVE" default:"false"`

	// Backup copies the previous catalog aside before writing (default: true)
	Backup bool `env:"XA_BACKUP" default:"true"`

	// BackupDir receives catalog backups; empty means next to the catalog
	BackupDir string `env:"XA_BACKUP_DIR"`
}

// ImagesConfig holds image host credentials.
type ImagesConfig struct {
	AccountID string `env:"XA_CLOUDFLARE_ACCOUNT_ID" envAlt:"CLOUDFLARE_ACCOUNT_ID"`
	Token     string `env:"XA_CLOUDFLARE_IMAGES_TOKEN" envAlt:"CLOUDFLARE_IMAGES_TOKEN"`

	// APIBase is the API root (default: https://api.cloudflare.com/client/v4)
	APIBase string `env:"XA_CLOUDFLARE_API_BASE" default:"https://api.cloudflare.com/client/v4"`

	// Timeout bounds one upload request (default: 60s)
	Timeout time.Duration `env:"XA_CLOUDFLARE_TIMEOUT" default:"60s"`
}

// Configured reports whether both credentials are present.
func (c ImagesConfig) Configured() bool {
	return c.AccountID != "" && c.Token != ""
}

// BucketConfig locates the submission bucket. Sync is disabled when Name is
// empty.
type BucketConfig struct {
	Name            string `env:"XA_BUCKET"`
	Prefix          string `env:"XA_BUCKET_PREFIX"`
	Region          string `env:"XA_BUCKET_REGION" default:"auto"`
	Endpoint        string `env:"XA_BUCKET_ENDPOINT"`
	AccessKeyID     string `env:"XA_BUCKET_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"XA_BUCKET_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
}

// Enabled reports whether a bucket is configured.
func (c BucketConfig) Enabled() bool { return c.Name != "" }

// SyncConfig holds the daemon's file locations and schedule.
type SyncConfig struct {
	// CatalogPath is the catalog document (default: data/catalog.json)
	CatalogPath string `env:"XA_CATALOG_PATH" default:"data/catalog.json"`

	// StatePath is the upload cache (default: data/upload-state.json)
	StatePath string `env:"XA_UPLOAD_STATE" default:"data/upload-state.json"`

	// ProcessedPath records ingested bucket objects (default: data/processed.json)
	ProcessedPath string `env:"XA_PROCESSED_PATH" default:"data/processed.json"`

	// WorkDir holds downloaded submissions while they are ingested (default: data/work)
	WorkDir string `env:"XA_WORK_DIR" default:"data/work"`

	// Interval is the time between polls (default: 5m)
	Interval time.Duration `env:"XA_SYNC_INTERVAL" default:"5m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 10m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds run-history database settings. History is disabled
// when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// Enabled reports whether run history is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of keys accepted by protected endpoints
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey protects POST endpoints (default: true)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"true"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

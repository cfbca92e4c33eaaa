package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result. Every
// problem found is reported in one error.
func Load() (*Config, error) {
	return load(os.Getenv)
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	var errs []string
	loadStruct(reflect.ValueOf(cfg).Elem(), getenv, &errs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("config load: %s", joinErrors(errs))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables,
// appending one message per bad or missing value to errs.
func loadStruct(v reflect.Value, getenv func(string) string, errs *[]string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			loadStruct(fieldVal, getenv, errs)
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := getenv(envName)
		if value == "" && envAlt != "" {
			value = getenv(envAlt)
		}

		if value == "" {
			if required {
				*errs = append(*errs, fmt.Sprintf("required environment variable %s is not set", envName))
				continue
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			*errs = append(*errs, fmt.Sprintf("invalid value for %s=%q: %v", envName, value, err))
		}
	}
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Split comma-separated values, trim whitespace
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks the settings shared by the command-line tool and the
// daemon. Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Ingest validation
	if c.Ingest.Concurrency <= 0 {
		errs = append(errs, "XA_CONCURRENCY must be positive")
	}
	if c.Ingest.MinImageEdge < 0 {
		errs = append(errs, "XA_MIN_IMAGE_EDGE must be non-negative")
	}

	// Image host validation: both credentials or neither
	if (c.Images.AccountID == "") != (c.Images.Token == "") {
		errs = append(errs, "XA_CLOUDFLARE_ACCOUNT_ID and XA_CLOUDFLARE_IMAGES_TOKEN must be set together")
	}
	if c.Images.Timeout <= 0 {
		errs = append(errs, "XA_CLOUDFLARE_TIMEOUT must be positive")
	}

	// Bucket and sync validation
	if c.Bucket.Enabled() {
		if (c.Bucket.AccessKeyID == "") != (c.Bucket.SecretAccessKey == "") {
			errs = append(errs, "XA_BUCKET_ACCESS_KEY_ID and XA_BUCKET_SECRET_ACCESS_KEY must be set together")
		}
		if c.Sync.Interval <= 0 {
			errs = append(errs, "XA_SYNC_INTERVAL must be positive")
		}
		if c.Sync.CatalogPath == "" || c.Sync.ProcessedPath == "" || c.Sync.WorkDir == "" {
			errs = append(errs, "XA_CATALOG_PATH, XA_PROCESSED_PATH and XA_WORK_DIR are required when XA_BUCKET is set")
		}
	}

	// Database validation
	if c.Database.Enabled() {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %s", joinErrors(errs))
	}

	return nil
}

func joinErrors(errs []string) string {
	return "\n  - " + strings.Join(errs, "\n  - ")
}

// ValidateServer checks the settings only the daemon uses: the listener and
// API authentication.
func (c *Config) ValidateServer() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	if len(errs) > 0 {
		return fmt.Errorf("server validation failed: %s", joinErrors(errs))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials, keys and the database URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Ingest: {Concurrency: %d, MinImageEdge: %d, Strict: %v, Backup: %v}, ",
		c.Ingest.Concurrency, c.Ingest.MinImageEdge, c.Ingest.Strict, c.Ingest.Backup)
	fmt.Fprintf(&b, "Images: {AccountID: %s, Token: %s}, ", mask(c.Images.AccountID), mask(c.Images.Token))
	fmt.Fprintf(&b, "Bucket: {Name: %q, Prefix: %q, Endpoint: %q, AccessKeyID: %s, SecretAccessKey: %s}, ",
		c.Bucket.Name, c.Bucket.Prefix, c.Bucket.Endpoint, mask(c.Bucket.AccessKeyID), mask(c.Bucket.SecretAccessKey))
	fmt.Fprintf(&b, "Sync: {CatalogPath: %q, Interval: %s}, ", c.Sync.CatalogPath, c.Sync.Interval)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d}, ", mask(c.Database.URL), c.Database.MaxConns)
	fmt.Fprintf(&b, "Security: {APIKeys: %d, RequireAPIKey: %v}, ", len(c.Security.APIKeys), c.Security.RequireAPIKey)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}

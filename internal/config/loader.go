package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DB_URL")
	}
	cfg.Security.TrustedProxies = trimList(cfg.Security.TrustedProxies)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// trimList trims whitespace around comma-separated values and drops empties.
func trimList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
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

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
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

	// Import validation
	if c.Import.UploadDir == "" {
		errs = append(errs, "IMPORT_UPLOAD_DIR must not be empty")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.MaxAttempts <= 0 {
		errs = append(errs, "IMPORT_MAX_ATTEMPTS must be positive")
	}
	if c.Import.AttemptTimeout <= 0 {
		errs = append(errs, "IMPORT_ATTEMPT_TIMEOUT must be positive")
	}
	if c.Import.RetryDelay < 0 {
		errs = append(errs, "IMPORT_RETRY_DELAY must be non-negative")
	}
	validPolicies := map[string]bool{"merge": true, "overwrite": true}
	if !validPolicies[strings.ToLower(c.Import.EvaluationPolicy)] {
		errs = append(errs, fmt.Sprintf("IMPORT_EVALUATION_POLICY (%q) must be one of: merge, overwrite", c.Import.EvaluationPolicy))
	}
	if c.Import.BcryptCost < 4 || c.Import.BcryptCost > 31 {
		errs = append(errs, fmt.Sprintf("IMPORT_BCRYPT_COST (%d) must be 4-31", c.Import.BcryptCost))
	}

	// Progress validation
	validBackends := map[string]bool{"memory": true, "redis": true}
	if !validBackends[strings.ToLower(c.Progress.Backend)] {
		errs = append(errs, fmt.Sprintf("PROGRESS_BACKEND (%q) must be one of: memory, redis", c.Progress.Backend))
	}
	if c.Progress.TTL <= 0 {
		errs = append(errs, "PROGRESS_TTL must be positive")
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, "REDIS_ADDR is required when PROGRESS_BACKEND is redis")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
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
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// UsesRedis reports whether any component is configured to use Redis.
func (c *Config) UsesRedis() bool {
	return strings.EqualFold(c.Progress.Backend, "redis")
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Import: {MaxConcurrent: %d, MaxAttempts: %d, AttemptTimeout: %s, Policy: %q}, ",
		c.Import.MaxConcurrent, c.Import.MaxAttempts, c.Import.AttemptTimeout, c.Import.EvaluationPolicy))
	b.WriteString(fmt.Sprintf("Progress: {Backend: %q, TTL: %s}, ", c.Progress.Backend, c.Progress.TTL))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, UploadLimit: %d}, ",
		c.Rate.Enabled, c.Rate.UploadLimit))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

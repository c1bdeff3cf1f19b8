// Package config handles client configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache population policies.
const (
	// PopulationEager signs the whole batch during scan resolution.
	PopulationEager = "eager"
	// PopulationLazy defers signing until the first read of each batch.
	PopulationLazy = "lazy"
)

// Config holds the client configuration: pushdown feature flags, URL cache
// tuning, schema checking, and HTTP transport behavior.
type Config struct {
	// Predicate pushdown.
	PredicateHintsEnabled bool // send predicate hints at all (default true)
	PredicateV2Enabled    bool // combine partition and data predicates, second-generation grammar (default true)

	// Pre-signed URL cache.
	URLCacheEnabled     bool          // cache URLs between reads; false means one issuance per read (default true)
	CachePopulation     string        // "eager" or "lazy" (default "eager")
	CacheRefreshSkew    time.Duration // refresh a URL this long before its stated expiry (default 5m)
	CacheDefaultTTL     time.Duration // assumed URL lifetime when the signer states no expiry (default 1h)
	CacheSweepInterval  time.Duration // background sweep cadence (default 1m)
	CacheMaxBatches     int           // bound on retained scan batches (default 256)
	CacheRefreshTimeout time.Duration // cap on waiting for an in-flight refresh (default 30s)

	// Schema checking. When false, any textual schema change between plan
	// and read is rejected; when true, additive drift is tolerated.
	StructuralSchemaMatch bool

	// HTTP transport.
	HTTPTimeout    time.Duration // per-request timeout (default 2m)
	MaxRetries     int           // retry budget for retriable responses (default 10)
	RetryBaseDelay time.Duration // first retry backoff, doubled per attempt (default 200ms)
	RateLimitRPS   float64       // outbound request rate cap, 0 = unlimited
	RateLimitBurst int           // burst capacity when rate limiting (default 10)

	LogLevel string // log level: debug, info, warn, error (default "info")

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EagerPopulation reports whether scan resolution signs batches up front.
func (c *Config) EagerPopulation() bool {
	return c.CachePopulation != PopulationLazy
}

// Default returns the configuration with every knob at its default, ignoring
// the environment.
func Default() *Config {
	return &Config{
		PredicateHintsEnabled: true,
		PredicateV2Enabled:    true,
		URLCacheEnabled:       true,
		CachePopulation:       PopulationEager,
		CacheRefreshSkew:      5 * time.Minute,
		CacheDefaultTTL:       time.Hour,
		CacheSweepInterval:    time.Minute,
		CacheMaxBatches:       256,
		CacheRefreshTimeout:   30 * time.Second,
		HTTPTimeout:           2 * time.Minute,
		MaxRetries:            10,
		RetryBaseDelay:        200 * time.Millisecond,
		RateLimitBurst:        10,
		LogLevel:              "info",
	}
}

// LoadFromEnv loads configuration from LAKESHARE_* environment variables,
// falling back to defaults for anything unset.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	cfg.PredicateHintsEnabled = parseBoolEnvDefault("LAKESHARE_PREDICATE_HINTS", true)
	cfg.PredicateV2Enabled = parseBoolEnvDefault("LAKESHARE_PREDICATE_V2", true)
	cfg.URLCacheEnabled = parseBoolEnvDefault("LAKESHARE_URL_CACHE", true)
	cfg.StructuralSchemaMatch = parseBoolEnvDefault("LAKESHARE_STRUCTURAL_SCHEMA_MATCH", false)

	if v := os.Getenv("LAKESHARE_CACHE_POPULATION"); v != "" {
		cfg.CachePopulation = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("LAKESHARE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Durations keep their defaults on parse failure, with a warning.
	parseDurationEnv(cfg, "LAKESHARE_CACHE_REFRESH_SKEW", &cfg.CacheRefreshSkew)
	parseDurationEnv(cfg, "LAKESHARE_CACHE_TTL", &cfg.CacheDefaultTTL)
	parseDurationEnv(cfg, "LAKESHARE_CACHE_SWEEP_INTERVAL", &cfg.CacheSweepInterval)
	parseDurationEnv(cfg, "LAKESHARE_CACHE_REFRESH_TIMEOUT", &cfg.CacheRefreshTimeout)
	parseDurationEnv(cfg, "LAKESHARE_HTTP_TIMEOUT", &cfg.HTTPTimeout)
	parseDurationEnv(cfg, "LAKESHARE_RETRY_BASE_DELAY", &cfg.RetryBaseDelay)

	if v := os.Getenv("LAKESHARE_CACHE_MAX_BATCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheMaxBatches = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("LAKESHARE_CACHE_MAX_BATCHES %q is not an integer, using default", v))
		}
	}
	if v := os.Getenv("LAKESHARE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("LAKESHARE_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("LAKESHARE_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.CachePopulation {
	case PopulationEager, PopulationLazy:
		// valid
	default:
		return fmt.Errorf("LAKESHARE_CACHE_POPULATION must be %q or %q, got %q",
			PopulationEager, PopulationLazy, c.CachePopulation)
	}
	if c.CacheMaxBatches <= 0 {
		return fmt.Errorf("LAKESHARE_CACHE_MAX_BATCHES must be positive, got %d", c.CacheMaxBatches)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("LAKESHARE_MAX_RETRIES must be non-negative, got %d", c.MaxRetries)
	}
	if c.CacheRefreshSkew >= c.CacheDefaultTTL {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"LAKESHARE_CACHE_REFRESH_SKEW (%s) is not below LAKESHARE_CACHE_TTL (%s); every read will refresh",
			c.CacheRefreshSkew, c.CacheDefaultTTL))
	}
	return nil
}

func parseDurationEnv(cfg *Config, key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("%s %q is not a duration, using default", key, v))
		return
	}
	*dst = d
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

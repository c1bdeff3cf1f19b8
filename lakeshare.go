// Package lakeshare is the client facade for an open tabular-data sharing
// protocol: it opens a credential profile, navigates the catalog the provider
// exposes (shares, schemas, tables), and resolves table scans into file
// references backed by cached pre-signed URLs.
//
// A Client bundles the REST transport, the URL cache with its background
// sweeper, and the scan resolver. Construct one per profile and close it when
// done:
//
//	client, err := lakeshare.Open("provider.share", nil)
//	if err != nil { ... }
//	defer client.Close()
//
//	scan, err := client.ResolveScan(ctx, table, sharing.ScanParams{})
//	if err != nil { ... }
//	defer scan.Close()
package lakeshare

import (
	"log/slog"
	"sync"

	"github.com/lakeshare/lakeshare/internal/config"
	"github.com/lakeshare/lakeshare/internal/resolver"
	"github.com/lakeshare/lakeshare/internal/rest"
	"github.com/lakeshare/lakeshare/internal/urlcache"
	"github.com/lakeshare/lakeshare/profile"
	"github.com/lakeshare/lakeshare/sharing"
)

// Config tunes a Client: pushdown feature flags, URL cache behavior, and HTTP
// transport knobs. Aliased from the internal package so callers can construct
// and mutate one without reaching into internal paths.
type Config = config.Config

// DefaultConfig returns the configuration with every knob at its default.
func DefaultConfig() *Config {
	return config.Default()
}

// ConfigFromEnv loads the configuration from LAKESHARE_* environment
// variables, falling back to defaults for anything unset.
func ConfigFromEnv() (*Config, error) {
	return config.LoadFromEnv()
}

// Scan is a resolved snapshot scan; see Client.ResolveScan.
type Scan = resolver.Scan

// ChangeScan is a resolved change-data-feed scan; see Client.ResolveChanges.
type ChangeScan = resolver.ChangeScan

// Client is a session against one sharing server on behalf of one credential
// profile. It is safe for concurrent use.
type Client struct {
	profile  *profile.Profile
	cfg      *config.Config
	rest     *rest.Client
	cache    *urlcache.Cache   // nil when URL caching is disabled
	janitor  *urlcache.Janitor // nil when URL caching is disabled
	resolver *resolver.Resolver
	logger   *slog.Logger

	closeOnce sync.Once
}

// Open loads the profile file at path and builds a client for its server,
// configured from the environment. A nil logger falls back to slog.Default.
func Open(path string, logger *slog.Logger) (*Client, error) {
	prof, err := profile.LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return NewClient(prof, cfg, logger)
}

// NewClient builds a client from an already-parsed profile. A nil cfg uses
// the defaults; a nil logger falls back to slog.Default.
func NewClient(prof *profile.Profile, cfg *Config, logger *slog.Logger) (*Client, error) {
	if prof == nil {
		return nil, sharing.ErrValidation("credential profile is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	restClient, err := rest.New(prof, cfg, logger)
	if err != nil {
		return nil, err
	}

	var cache *urlcache.Cache
	var janitor *urlcache.Janitor
	if cfg.URLCacheEnabled {
		cache = urlcache.New(urlcache.Options{
			RefreshSkew:    cfg.CacheRefreshSkew,
			DefaultTTL:     cfg.CacheDefaultTTL,
			MaxBatches:     cfg.CacheMaxBatches,
			RefreshTimeout: cfg.CacheRefreshTimeout,
		}, logger)
		janitor = urlcache.NewJanitor(cache, cfg.CacheSweepInterval, logger)
		if err := janitor.Start(); err != nil {
			return nil, err
		}
	}

	return &Client{
		profile:  prof,
		cfg:      cfg,
		rest:     restClient,
		cache:    cache,
		janitor:  janitor,
		resolver: resolver.New(restClient, restClient, cache, restClient.Endpoint(), cfg, logger),
		logger:   logger,
	}, nil
}

// Close stops the cache sweeper. Resolved scans stay readable until their
// cached URLs expire; Close does not invalidate them. Safe to call more than
// once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.janitor != nil {
			c.janitor.Stop()
		}
	})
}

// Endpoint returns the normalized server base URL of the session's profile.
func (c *Client) Endpoint() string {
	return c.rest.Endpoint()
}

// Profile returns the credential profile the client was opened with.
func (c *Client) Profile() *profile.Profile {
	return c.profile
}

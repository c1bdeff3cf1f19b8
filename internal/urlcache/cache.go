// Package urlcache holds the process-wide cache of pre-signed file URLs.
//
// Entries are grouped into batches, one batch per resolved scan, keyed by
// the scan's table location (which embeds the query fingerprint). Distinct
// queries against one table therefore never share or evict each other's
// URL sets, while identical queries reuse one batch. Refresh is per batch:
// URLs are issued together, so they are re-issued together, and concurrent
// readers of one stale batch are collapsed into a single issuance call.
package urlcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lakeshare/lakeshare/sharing"
)

// Options tune the cache. Zero values fall back to the defaults noted.
type Options struct {
	// RefreshSkew refreshes an entry this long before its stated expiry,
	// so a URL handed to a reader stays valid for the read (default 5m).
	RefreshSkew time.Duration
	// DefaultTTL is the assumed lifetime of a URL whose signer stated no
	// expiry (default 1h).
	DefaultTTL time.Duration
	// MaxBatches bounds the number of retained batches (default 256).
	MaxBatches int
	// RefreshTimeout caps how long a reader waits on an in-flight refresh
	// before surfacing a timeout instead of blocking (default 30s).
	RefreshTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RefreshSkew < 0 {
		o.RefreshSkew = 0
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = time.Hour
	}
	if o.MaxBatches <= 0 {
		o.MaxBatches = 256
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 30 * time.Second
	}
	return o
}

type entry struct {
	url              string
	expirationMillis int64
}

// batch groups the URLs discovered by one scan resolution. The id set is
// fixed at registration; refreshes replace URLs in place.
type batch struct {
	table  sharing.Table
	issuer sharing.CredentialIssuer

	mu        sync.RWMutex
	ids       map[string]bool
	entries   map[string]entry
	expiresAt int64 // earliest entry expiry, 0 until first population
	populated bool

	// refs counts live scan handles, guarded by the cache mutex.
	refs int
}

func (b *batch) fresh(fileID string, nowMillis, skewMillis int64) (sharing.SignedURL, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[fileID]
	if !ok || nowMillis >= e.expirationMillis-skewMillis {
		return sharing.SignedURL{}, false
	}
	return sharing.SignedURL{URL: e.url, ExpirationMillis: e.expirationMillis}, true
}

func (b *batch) idSlice() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	return ids
}

func (b *batch) store(urls map[string]sharing.SignedURL, nowMillis int64, defaultTTL time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries == nil {
		b.entries = make(map[string]entry, len(urls))
	}
	for id, u := range urls {
		if !b.ids[id] {
			continue
		}
		exp := u.ExpirationMillis
		if exp <= 0 {
			exp = nowMillis + defaultTTL.Milliseconds()
		}
		b.entries[id] = entry{url: u.URL, expirationMillis: exp}
	}
	b.expiresAt = 0
	for _, e := range b.entries {
		if b.expiresAt == 0 || e.expirationMillis < b.expiresAt {
			b.expiresAt = e.expirationMillis
		}
	}
	if len(b.entries) > 0 {
		b.populated = true
	}
}

func (b *batch) snapshot() (expiresAt int64, populated bool, size int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.expiresAt, b.populated, len(b.entries)
}

// Lease is the handle a resolved scan holds on its batch. Releasing it
// marks the batch evictable once its URLs expire; it never evicts eagerly,
// so late readers of an already-released scan still hit the cache while
// the URLs remain valid.
type Lease struct {
	cache    *Cache
	location string
	b        *batch
	once     sync.Once
}

// Location returns the batch's table location key.
func (l *Lease) Location() string { return l.location }

// Release drops this handle's claim on the batch. Safe to call more than
// once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.cache.mu.Lock()
		defer l.cache.mu.Unlock()
		l.b.refs--
	})
}

// Cache is the process-wide pre-signed URL cache. Construct one per client
// session and share it by reference; it is safe for concurrent use.
type Cache struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex // guards registration, refs, eviction choice
	batches *lru.Cache[string, *batch]
	group   singleflight.Group
}

// New builds an empty cache.
func New(opts Options, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
	// Size bound is enforced in Register so eviction can prefer expired
	// batches; the LRU order is the fallback. The constructor only fails
	// on a non-positive size, which withDefaults rules out.
	c.batches, _ = lru.NewWithEvict[string, *batch](c.opts.MaxBatches, func(key string, _ *batch) {
		logger.Debug("evicted url batch", "location", key)
	})
	return c
}

// Register adds (or re-claims) the batch for one resolved scan and returns
// the lease the scan holds on it. urls may be nil for lazy population; the
// first read then triggers issuance. Registering an already-present
// location joins the existing batch: the id set is merged and any newly
// issued URLs replace stale ones.
func (c *Cache) Register(tableLocation string, table sharing.Table, fileIDs []string, urls map[string]sharing.SignedURL, issuer sharing.CredentialIssuer) (*Lease, error) {
	if tableLocation == "" {
		return nil, sharing.ErrValidation("table location is required")
	}
	if issuer == nil {
		return nil, sharing.ErrValidation("credential issuer is required")
	}

	c.mu.Lock()
	b, ok := c.batches.Get(tableLocation)
	if !ok {
		b = &batch{
			table:   table,
			issuer:  issuer,
			ids:     make(map[string]bool, len(fileIDs)),
			entries: make(map[string]entry, len(urls)),
		}
		c.ensureCapacityLocked()
		c.batches.Add(tableLocation, b)
	}
	b.refs++
	b.mu.Lock()
	for _, id := range fileIDs {
		b.ids[id] = true
	}
	// The newest issuer carries the freshest refresh token.
	b.issuer = issuer
	b.mu.Unlock()
	c.mu.Unlock()

	if len(urls) > 0 {
		b.store(urls, c.nowMillis(), c.opts.DefaultTTL)
	}
	c.logger.Debug("registered url batch",
		"location", tableLocation, "table", table.String(), "files", len(fileIDs), "eager", len(urls) > 0)
	return &Lease{cache: c, location: tableLocation, b: b}, nil
}

// ensureCapacityLocked makes room for one more batch. Preference order:
// an expired unreferenced batch, then the least-recently-used unreferenced
// batch, then plain LRU order via the underlying store.
func (c *Cache) ensureCapacityLocked() {
	if c.batches.Len() < c.opts.MaxBatches {
		return
	}
	nowMillis := c.nowMillis()
	var fallback string
	var haveFallback bool
	for _, key := range c.batches.Keys() { // oldest first
		b, ok := c.batches.Peek(key)
		if !ok || b.refs > 0 {
			continue
		}
		expiresAt, _, _ := b.snapshot()
		if nowMillis >= expiresAt {
			c.batches.Remove(key)
			return
		}
		if !haveFallback {
			fallback, haveFallback = key, true
		}
	}
	if haveFallback {
		c.batches.Remove(fallback)
	}
	// Otherwise every batch is referenced; Add lets the LRU drop the
	// oldest, trading an active scan's cache hits for the bound.
}

// Get returns a usable URL for one file, refreshing the owning batch first
// when the entry is missing or within the refresh skew of expiry. A failed
// or over-long refresh surfaces as CredentialUnavailableError.
func (c *Cache) Get(ctx context.Context, tableLocation, fileID string) (sharing.SignedURL, error) {
	b, ok := c.batches.Get(tableLocation)
	if !ok {
		return sharing.SignedURL{}, sharing.ErrCredentialUnavailable(nil,
			"no cached credentials for %s", tableLocation)
	}
	if u, ok := b.fresh(fileID, c.nowMillis(), c.opts.RefreshSkew.Milliseconds()); ok {
		return u, nil
	}
	if err := c.refreshBatch(ctx, tableLocation, b); err != nil {
		return sharing.SignedURL{}, err
	}
	// Skew is not re-applied here: the issuer just answered, and with a
	// TTL at or below the skew a second refresh would loop forever.
	if u, ok := b.fresh(fileID, c.nowMillis(), 0); ok {
		return u, nil
	}
	return sharing.SignedURL{}, sharing.ErrCredentialUnavailable(nil,
		"file %s is not part of the scan cached at %s", fileID, tableLocation)
}

// refreshBatch collapses concurrent refreshes of one batch into a single
// issuance call. The call itself runs on a context detached from the
// triggering reader, so an abandoned reader cannot poison the refresh for
// the others waiting on it; the deadline bounds it instead.
func (c *Cache) refreshBatch(ctx context.Context, key string, b *batch) error {
	ch := c.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RefreshTimeout)
		defer cancel()
		return nil, c.populate(rctx, key, b)
	})

	timeout := time.NewTimer(c.opts.RefreshTimeout)
	defer timeout.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return sharing.ErrCredentialUnavailable(res.Err,
				"refreshing signed URLs for %s failed", b.table.String())
		}
		return nil
	case <-ctx.Done():
		return sharing.ErrCredentialUnavailable(ctx.Err(),
			"refreshing signed URLs for %s abandoned", b.table.String())
	case <-timeout.C:
		return sharing.ErrCredentialUnavailable(nil,
			"refresh for %s still in flight after %s", b.table.String(), c.opts.RefreshTimeout)
	}
}

func (c *Cache) populate(ctx context.Context, key string, b *batch) error {
	ids := b.idSlice()
	if len(ids) == 0 {
		return nil
	}
	start := c.now()
	urls, err := b.issuer.Sign(ctx, b.table, ids)
	if err != nil {
		c.logger.Warn("signed URL issuance failed",
			"location", key, "table", b.table.String(), "error", err)
		return err
	}
	b.store(urls, c.nowMillis(), c.opts.DefaultTTL)
	c.logger.Debug("refreshed url batch",
		"location", key, "files", len(urls), "elapsed", time.Since(start))
	return nil
}

// Size returns the number of live URL entries across all batches.
func (c *Cache) Size() int {
	total := 0
	for _, key := range c.batches.Keys() {
		if b, ok := c.batches.Peek(key); ok {
			_, _, n := b.snapshot()
			total += n
		}
	}
	return total
}

// BatchCount returns the number of retained batches.
func (c *Cache) BatchCount() int {
	return c.batches.Len()
}

// Sweep walks all batches once: expired batches whose scans released their
// leases are evicted; still-referenced batches nearing expiry are refreshed
// in place so active scans keep reading without a stall. Lazy batches that
// were never read are left for their first read to populate.
func (c *Cache) Sweep(ctx context.Context) {
	nowMillis := c.nowMillis()
	type refreshTarget struct {
		key string
		b   *batch
	}
	var targets []refreshTarget

	c.mu.Lock()
	for _, key := range c.batches.Keys() {
		b, ok := c.batches.Peek(key)
		if !ok {
			continue
		}
		expiresAt, populated, _ := b.snapshot()
		switch {
		case b.refs <= 0 && nowMillis >= expiresAt:
			c.batches.Remove(key)
		case b.refs > 0 && populated && nowMillis >= expiresAt-c.opts.RefreshSkew.Milliseconds():
			targets = append(targets, refreshTarget{key: key, b: b})
		}
	}
	c.mu.Unlock()

	for _, t := range targets {
		if err := c.refreshBatch(ctx, t.key, t.b); err != nil {
			// Keep the batch: readers trigger their own refresh and get
			// the error with full context if it persists.
			c.logger.Warn("sweep refresh failed", "location", t.key, "error", err)
		}
	}
	if len(targets) > 0 {
		c.logger.Debug("sweep refreshed batches", "count", len(targets))
	}
}

func (c *Cache) nowMillis() int64 {
	return c.now().UnixMilli()
}

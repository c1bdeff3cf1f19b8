package urlcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor drives the cache's periodic sweep: evicting released expired
// batches and pre-refreshing batches active scans still hold.
type Janitor struct {
	cron     *cron.Cron
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a janitor sweeping the cache at the given interval.
func NewJanitor(cache *Cache, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		cron:     cron.New(),
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the sweep and starts the cron runner.
func (j *Janitor) Start() error {
	spec := fmt.Sprintf("@every %s", j.interval)
	if _, err := j.cron.AddFunc(spec, func() {
		j.cache.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule cache sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Debug("url cache janitor started", "interval", j.interval)
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Debug("url cache janitor stopped")
}

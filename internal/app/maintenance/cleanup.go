package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/internal/eviction"
	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/pkg/logger"
)

const (
	// JobEviction is the maintenance job name used for metrics and health.
	JobEviction = "cache_eviction"
	// JobKVPurge removes expired cooldown and failure-window rows.
	JobKVPurge = "kv_purge"

	defaultEvictionSpec = "@every 15m"
	defaultPurgeSpec    = "@hourly"
)

// Evictor runs one eviction pass.
type Evictor interface {
	Run(ctx context.Context) (eviction.Result, error)
}

// Purger removes expired key/value rows.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner schedules cache eviction and cooldown store housekeeping.
type Cleaner struct {
	evictor Evictor
	purger  Purger
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	timeout time.Duration

	evictionSchedule string
	purgeSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used to time runs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithEvictionSchedule overrides the cron expression for eviction.
func WithEvictionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.evictionSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron expression for KV purging.
func WithPurgeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.purgeSchedule = spec
		}
	}
}

// WithJobTimeout bounds each scheduled run.
func WithJobTimeout(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.timeout = d
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips its job.
func NewCleaner(evictor Evictor, purger Purger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		evictor:          evictor,
		purger:           purger,
		now:              time.Now,
		timeout:          30 * time.Minute,
		evictionSchedule: defaultEvictionSpec,
		purgeSchedule:    defaultPurgeSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return cleaner
}

// Start registers jobs with the cron scheduler and launches it if any job is enabled.
func (c *Cleaner) Start() error {
	if c.evictor == nil && c.purger == nil {
		return nil
	}

	if c.evictor != nil {
		if _, err := c.cron.AddFunc(c.evictionSchedule, c.scheduled(func(ctx context.Context) {
			_, _ = c.Evict(ctx)
		})); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobEviction, err)
		}
	}

	if c.purger != nil {
		if _, err := c.cron.AddFunc(c.purgeSchedule, c.scheduled(func(ctx context.Context) {
			_, _ = c.Purge(ctx)
		})); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobKVPurge, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Evict runs one eviction pass and records it as a maintenance run.
func (c *Cleaner) Evict(ctx context.Context) (eviction.Result, error) {
	if c.evictor == nil {
		return eviction.Result{}, nil
	}

	start := c.now()
	result, err := c.evictor.Run(ctx)
	duration := c.now().Sub(start)
	if err != nil {
		monitoring.RecordMaintenanceRun(JobEviction, "failure", err.Error(), duration)
		c.log.Warn("cache eviction failed", zap.Error(err),
			zap.Int("deleted", result.Deleted),
			zap.Int64("freed_bytes", result.FreedBytes),
		)
		return result, err
	}

	monitoring.RecordMaintenanceRun(JobEviction, "success", "", duration)
	return result, nil
}

// Purge removes expired cooldown markers and failure counters.
func (c *Cleaner) Purge(ctx context.Context) (int64, error) {
	if c.purger == nil {
		return 0, nil
	}

	start := c.now()
	removed, err := c.purger.PurgeExpired(ctx)
	duration := c.now().Sub(start)
	if err != nil {
		monitoring.RecordMaintenanceRun(JobKVPurge, "failure", err.Error(), duration)
		c.log.Warn("kv purge failed", zap.Error(err))
		return removed, err
	}
	monitoring.RecordMaintenanceRun(JobKVPurge, "success", "", duration)
	if removed > 0 {
		c.log.Debug("purged expired kv entries", zap.Int64("removed", removed))
	}
	return removed, nil
}

// RunOnce executes every configured job sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if _, err := c.Evict(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.Purge(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (c *Cleaner) scheduled(job func(ctx context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		job(ctx)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/mediacache/internal/api"
	"github.com/charlesng35/mediacache/internal/app"
	"github.com/charlesng35/mediacache/internal/app/maintenance"
	"github.com/charlesng35/mediacache/internal/background"
	"github.com/charlesng35/mediacache/internal/blob"
	"github.com/charlesng35/mediacache/internal/cache"
	"github.com/charlesng35/mediacache/internal/database"
	"github.com/charlesng35/mediacache/internal/eviction"
	"github.com/charlesng35/mediacache/internal/handlers"
	"github.com/charlesng35/mediacache/internal/index"
	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/internal/monitoring/checks"
	"github.com/charlesng35/mediacache/internal/proxy"
	"github.com/charlesng35/mediacache/internal/upstream"
)

type runtimeStack struct {
	Config   *app.Config
	DB       *gorm.DB
	Redis    *cache.RedisStore
	Settings *upstream.DatabaseSettings
	Blobs    blob.Store
	Index    *index.Repository
	Tasks    *background.Group
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine

	scheduled bool
}

type bootstrapOptions struct {
	schedule bool
}

type bootstrapOption func(*bootstrapOptions)

// withScheduler starts the cron driven maintenance jobs.
func withScheduler() bootstrapOption {
	return func(o *bootstrapOptions) {
		o.schedule = true
	}
}

func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger, opts ...bootstrapOption) (stack *runtimeStack, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	var options bootstrapOptions
	for _, opt := range opts {
		opt(&options)
	}

	stack = &runtimeStack{Config: cfg}
	defer func() {
		if err != nil {
			stack.Shutdown(context.Background(), log)
			stack = nil
		}
	}()

	stack.DB, err = database.OpenAndMigrate(cfg.Database.ConnectionConfig())
	if err != nil {
		return stack, fmt.Errorf("initialise database: %w", err)
	}

	seeded, err := upstream.SeedTokens(ctx, stack.DB, cfg.Origin.Tokens)
	if err != nil {
		return stack, fmt.Errorf("seed origin tokens: %w", err)
	}
	if seeded > 0 {
		log.Info("origin tokens seeded", zap.Int("count", seeded))
	}

	var cooldowns cache.Store
	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			return stack, fmt.Errorf("initialise redis: %w", err)
		}
		cooldowns = stack.Redis
		log.Info("redis cooldown store enabled", zap.String("address", cfg.Cache.Redis.Address))
	} else {
		cooldowns = cache.NewDatabaseStore(stack.DB)
	}

	tokens, err := upstream.NewDatabaseTokenAuthority(stack.DB, cooldowns, cfg.Origin.TokenPolicy())
	if err != nil {
		return stack, fmt.Errorf("initialise token authority: %w", err)
	}

	stack.Settings, err = upstream.NewDatabaseSettings(stack.DB, cfg.Settings.Defaults(), cfg.Settings.RefreshInterval)
	if err != nil {
		return stack, fmt.Errorf("initialise settings: %w", err)
	}

	stack.Blobs, err = blob.New(cfg.Blob.StoreConfig())
	if err != nil {
		return stack, fmt.Errorf("initialise blob store: %w", err)
	}

	stack.Index, err = index.NewRepository(stack.DB)
	if err != nil {
		return stack, fmt.Errorf("initialise cache index: %w", err)
	}

	origin, err := upstream.NewClient(cfg.Origin.ClientConfig())
	if err != nil {
		return stack, fmt.Errorf("initialise origin client: %w", err)
	}

	stack.Tasks = background.NewGroup(
		background.WithTaskTimeout(cfg.Server.BackgroundTimeout),
		background.WithLogger(log.Named("background")),
	)

	engine, err := eviction.NewEngine(stack.Index, stack.Blobs, stack.Settings, cfg.Eviction.Policy(),
		eviction.WithLogger(log.Named("eviction")))
	if err != nil {
		return stack, fmt.Errorf("initialise eviction engine: %w", err)
	}

	var purger maintenance.Purger
	if store, ok := cooldowns.(*cache.DatabaseStore); ok {
		purger = store
	}
	stack.Cleaner = maintenance.NewCleaner(engine, purger,
		maintenance.WithEvictionSchedule(cfg.Eviction.Schedule),
		maintenance.WithJobTimeout(cfg.Server.BackgroundTimeout),
	)

	module, err := monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return stack, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(module)
	registerHealthChecks(module.Health(), stack)

	media, err := proxy.NewHandler(proxy.Deps{
		Blobs:        stack.Blobs,
		Index:        stack.Index,
		Origin:       origin,
		Tokens:       tokens,
		Settings:     stack.Settings,
		Tasks:        stack.Tasks,
		FetchTimeout: cfg.Origin.FetchTimeout,
		Logger:       log.Named("proxy"),
	})
	if err != nil {
		return stack, fmt.Errorf("initialise media handler: %w", err)
	}

	cacheHandler, err := handlers.NewCacheHandler(stack.Index, stack.Blobs, stack.Cleaner, stack.Settings)
	if err != nil {
		return stack, fmt.Errorf("initialise cache handler: %w", err)
	}
	settingsHandler, err := handlers.NewSettingsHandler(stack.Settings)
	if err != nil {
		return stack, fmt.Errorf("initialise settings handler: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:     cfg,
		Media:      media,
		Cache:      cacheHandler,
		Settings:   settingsHandler,
		Monitoring: module,
	})
	if err != nil {
		return stack, fmt.Errorf("initialise router: %w", err)
	}

	if options.schedule && cfg.Eviction.Enabled {
		if err = stack.Cleaner.Start(); err != nil {
			return stack, fmt.Errorf("start maintenance: %w", err)
		}
		stack.scheduled = true
		log.Info("maintenance scheduled",
			zap.String("schedule", cfg.Eviction.Schedule),
			zap.Int("ttl_days", engine.Policy().TTLDays),
			zap.Int("batch_size", engine.Policy().BatchSize),
		)
	}

	return stack, nil
}

func registerHealthChecks(health *monitoring.HealthManager, stack *runtimeStack) {
	cfg := stack.Config
	health.RegisterReadiness(checks.Database(stack.DB))
	if pinger, ok := stack.Blobs.(blob.Pinger); ok {
		health.RegisterReadiness(checks.Ping("blob_store", pinger, false))
	}
	if stack.Redis != nil {
		health.RegisterReadiness(checks.Ping("redis", stack.Redis, true))
	}
	if cfg.Eviction.Enabled && cfg.Monitoring.Health.MaintenanceMaxAge > 0 {
		health.RegisterReadiness(checks.Maintenance(maintenance.JobEviction, cfg.Monitoring.Health.MaintenanceMaxAge))
	}
}

// Shutdown drains background work and releases every resource the stack holds.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	if s.Cleaner != nil && s.scheduled {
		stopCtx := s.Cleaner.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.Tasks != nil {
		if err := s.Tasks.Wait(ctx); err != nil {
			log.Warn("background tasks cancelled", zap.Error(err))
		}
	}

	var errs error
	if s.Settings != nil {
		s.Settings.Close()
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	if errs != nil {
		log.Warn("resource cleanup failed", zap.Error(errs))
	}
}

// shutdownContext bounds Shutdown when no caller deadline exists.
func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

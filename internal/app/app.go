// Package app wires configuration into a ready pipeline runner for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/receipt-normalizer/internal/config"
	"github.com/ignite/receipt-normalizer/internal/pipeline"
	"github.com/ignite/receipt-normalizer/internal/pkg/distlock"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
	"github.com/ignite/receipt-normalizer/internal/source"
	"github.com/ignite/receipt-normalizer/internal/storage"
	"github.com/ignite/receipt-normalizer/internal/store"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config *config.Config
	Runner *pipeline.Runner
	Store  *store.Store
	Redis  *redis.Client
}

// Options adjust wiring for a single invocation.
type Options struct {
	// DryRun skips opening the store: nothing is loaded and no reports run.
	DryRun bool
}

// ConfigureLogger applies the logging section.
func ConfigureLogger(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	if cfg.Truncate > 0 {
		logger.SetTruncate(cfg.Truncate)
	}
}

// New opens every configured dependency. Close releases them.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	raw, err := storage.New(ctx, cfg.Source.Config)
	if err != nil {
		return nil, fmt.Errorf("source storage: %w", err)
	}
	src := source.New(raw, cfg.Source)

	var st pipeline.Store
	if !opts.DryRun {
		a.Store, err = store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		st = a.Store
	}

	a.Redis = connectRedis(ctx, cfg.Redis)

	a.Runner = pipeline.NewRunner(src, st, pipeline.Options{
		Normalizer:    cfg.Pipeline.NormalizerConfig(),
		LockTTL:       cfg.Pipeline.LockTTL(),
		ArchivePrefix: cfg.Pipeline.ArchivePrefix,
		SkipReports:   cfg.Pipeline.SkipReports,
	})

	a.Runner.WithLock(distlock.NewLock(a.Redis, a.db(), cfg.Store.Driver, cfg.Pipeline.LockKey, cfg.Pipeline.LockTTL()))

	if archiveCfg, ok := cfg.Pipeline.ArchiveStorage(cfg.Source.Config); ok {
		archive, err := storage.New(ctx, archiveCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("archive storage: %w", err)
		}
		a.Runner.WithArchive(archive)
	}
	return a, nil
}

// Close releases the store and Redis connections.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("app: close store", "error", err.Error())
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}

func (a *App) db() *sql.DB {
	if a.Store == nil {
		return nil
	}
	return a.Store.DB()
}

// connectRedis returns nil when Redis is unconfigured or unreachable; the
// run lock then falls back to the store or to the process.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(cfg.Addr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("app: redis unavailable, falling back", "addr", cfg.Addr, "error", err.Error())
		client.Close()
		return nil
	}
	logger.Info("app: redis connected", "addr", cfg.Addr)
	return client
}

// Package app assembles the matching service from configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/productmatch/backend/config"
	"github.com/productmatch/backend/internal/domain"
	"github.com/productmatch/backend/internal/infrastructure/cache"
	"github.com/productmatch/backend/internal/infrastructure/catalogapi"
	"github.com/productmatch/backend/internal/infrastructure/memindex"
	"github.com/productmatch/backend/internal/infrastructure/metrics"
	"github.com/productmatch/backend/internal/infrastructure/postgres"
	"github.com/productmatch/backend/internal/infrastructure/sqlite"
	"github.com/productmatch/backend/internal/tracing"
	"github.com/productmatch/backend/internal/usecase"
)

const (
	cacheCleanupInterval   = 10 * time.Minute
	tracingShutdownTimeout = 5 * time.Second
)

// App owns the matching service and the resources behind it
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Index   domain.ProductIndex
	Service *usecase.MatchingService

	closers []io.Closer
}

// New builds the index stack and the matching service described by cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	tp, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	if tp != nil {
		a.closers = append(a.closers, closerFunc(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
			defer cancel()
			return tp.Shutdown(shutdownCtx)
		}))
		logger.Info("tracing enabled",
			zap.String("protocol", cfg.Tracing.Protocol),
			zap.String("endpoint", cfg.Tracing.Endpoint),
			zap.Float64("sample_ratio", cfg.Tracing.SampleRatio),
		)
	}

	index, err := a.buildIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Index = index

	service, err := BuildService(index, cfg.Matching, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = service
	return a, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// BuildService creates the matching service for an already built index
func BuildService(index domain.ProductIndex, cfg config.MatchingConfig, logger *zap.Logger) (*usecase.MatchingService, error) {
	fields, err := domain.ParseSemanticFields(cfg.InputFields)
	if err != nil {
		return nil, err
	}
	return usecase.NewMatchingService(index, usecase.MatchConfig{
		InputFields:        fields,
		GoodMatchThreshold: cfg.GoodMatchThreshold,
		ExactMatchScore:    cfg.ExactMatchScore,
		BatchWorkers:       cfg.BatchWorkers,
		Logger:             logger.Named("matcher"),
		Recorder:           metrics.Recorder{},
	})
}

// Close releases every resource opened by New, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildIndex(ctx context.Context) (domain.ProductIndex, error) {
	base, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	var index domain.ProductIndex = metrics.NewInstrumentedIndex(base, a.Config.Index.Type)

	store, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return index, nil
	}

	cached := cache.NewCachingIndex(index, store, a.Config.Cache.TTL, a.Logger.Named("cache"))
	cached.SetObserver(metrics.Recorder{})
	return cached, nil
}

func (a *App) openBackend(ctx context.Context) (domain.ProductIndex, error) {
	cfg := a.Config.Index
	log := a.Logger.With(zap.String("index", cfg.Type))

	switch cfg.Type {
	case "memory":
		idx, err := memindex.LoadFile(cfg.FixturePath, memoryIndexOptions(cfg.Memory)...)
		if err != nil {
			return nil, err
		}
		log.Info("loaded catalog fixture", zap.String("path", cfg.FixturePath), zap.Int("products", idx.Len()))
		return idx, nil

	case "sqlite":
		catalog, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		a.closers = append(a.closers, catalog)
		if n, err := catalog.Count(ctx); err == nil {
			log.Info("opened sqlite catalog", zap.String("path", cfg.SQLitePath), zap.Int("products", n))
		}
		return catalog, nil

	case "postgres":
		catalog, err := postgres.Connect(ctx, postgres.Config{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, catalog)
		log.Info("connected to postgres catalog")
		return catalog, nil

	case "http":
		opts := []catalogapi.Option{
			catalogapi.WithTimeout(cfg.Timeout),
			catalogapi.WithLogger(a.Logger.Named("catalogapi")),
		}
		if cfg.RateLimit > 0 {
			opts = append(opts, catalogapi.WithRateLimit(cfg.RateLimit, int(2*cfg.RateLimit)+1))
		}
		client := catalogapi.NewClient(cfg.APIKey, cfg.BaseURL, opts...)
		if a.Config.Server.Environment == "development" {
			client.SetDebug(true)
		}
		if cfg.APIKey == "" {
			log.Warn("catalog API key not configured", zap.String("base_url", cfg.BaseURL))
		} else {
			log.Info("catalog API configured", zap.String("base_url", cfg.BaseURL))
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown index type %q", cfg.Type)
}

// memoryIndexOptions keeps the index defaults for a zero-valued section
func memoryIndexOptions(cfg config.MemoryIndexConfig) []memindex.Option {
	if cfg == (config.MemoryIndexConfig{}) {
		return nil
	}
	return []memindex.Option{
		memindex.WithBM25(cfg.K1, cfg.B),
		memindex.WithBoost(cfg.Boost),
		memindex.WithMinimumMatch(cfg.MinimumMatch),
	}
}

// openCache returns nil when caching is disabled
func (a *App) openCache(ctx context.Context) (domain.CacheRepository, error) {
	cfg := a.Config.Cache

	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		mc := cache.NewMemoryCache(cacheCleanupInterval)
		metrics.TrackCacheSize(mc.Size)
		a.closers = append(a.closers, mc)
		return mc, nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc)
		a.Logger.Info("connected to redis cache", zap.Duration("ttl", cfg.TTL))
		return rc, nil
	}
	return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
}

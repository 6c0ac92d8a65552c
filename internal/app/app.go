// Package app builds the lookup pipeline from configuration. Both the HTTP
// server and the batch report tool start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"frota/internal/nfe/extractor"
	"frota/internal/nfe/fetcher"
	"frota/internal/nfe/metrics"
	"frota/internal/nfe/service"
	"frota/internal/nfe/store"
	"frota/internal/platform/config"
	"frota/internal/platform/postgres"
	"frota/internal/platform/redis"
	httptransport "frota/internal/transport/http"
)

// App holds the wired lookup service and the resources behind it.
type App struct {
	Service *service.Service
	Metrics *metrics.Metrics
	Checks  map[string]httptransport.HealthCheck

	closers []func() error
}

// Build wires fetcher, extractor, cache and service from cfg. Collectors are
// registered on reg.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{
		Metrics: metrics.NewWithRegisterer(reg),
		Checks:  map[string]httptransport.HealthCheck{},
	}

	f, err := fetcher.New(cfg.Upstream.BaseURL,
		fetcher.WithHTTPClient(fetcher.NewHTTPClient(cfg.Upstream.Timeout)),
		fetcher.WithPrimeStatuses(cfg.Upstream.PrimeStatuses...),
		fetcher.WithMaxBodyBytes(cfg.Upstream.MaxBodyBytes),
		fetcher.WithObserver(a.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	cache, err := a.buildCache(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(a.Metrics),
	}
	if cache != nil {
		opts = append(opts, service.WithCache(cache))
	}
	a.Service, err = service.New(f, extractor.New(), opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "lookup pipeline ready",
		"upstream", f.BaseURL(),
		"cache", cfg.Cache.Backend,
		"prime_statuses", cfg.Upstream.PrimeStatuses,
	)
	return a, nil
}

func (a *App) buildCache(ctx context.Context, cfg config.Config) (service.DocumentCache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if client == nil {
			return nil, errors.New("redis cache selected without REDIS_URL")
		}
		a.closers = append(a.closers, client.Close)
		a.Checks["redis"] = client.Health
		return store.NewRedisCache(client.Client, cfg.Cache.TTL, a.Metrics), nil
	case config.CachePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if db == nil {
			return nil, errors.New("postgres cache selected without DATABASE_URL")
		}
		a.closers = append(a.closers, db.Close)
		a.Checks["postgres"] = pinger(db)
		cache := store.NewPostgresCache(db, cfg.Cache.TTL, a.Metrics)
		if err := cache.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure cache schema: %w", err)
		}
		return cache, nil
	default:
		return store.NewInMemoryCache(cfg.Cache.TTL, a.Metrics), nil
	}
}

func pinger(db *sql.DB) httptransport.HealthCheck {
	return db.PingContext
}

// Close releases cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

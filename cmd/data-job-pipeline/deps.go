package main

import (
	"context"

	"github.com/m-p-esser/data-job-pipeline/internal/cache"
	"github.com/m-p-esser/data-job-pipeline/internal/cache/memory"
	"github.com/m-p-esser/data-job-pipeline/internal/cache/redis"
	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/messaging"
	"github.com/m-p-esser/data-job-pipeline/internal/store"
	"github.com/m-p-esser/data-job-pipeline/internal/store/fs"
	"github.com/m-p-esser/data-job-pipeline/internal/warehouse"

	"go.uber.org/zap"
)

func newCache(cfg *config.Config) cache.Cache {
	opts := cache.Options{
		DefaultTTL:      cfg.CacheTTL,
		CleanupInterval: cache.DefaultOptions().CleanupInterval,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
	}

	if cfg.CacheBackend == "redis" {
		return redis.New(opts)
	}
	return memory.New(opts)
}

func newStore(cfg *config.Config) (store.Store, error) {
	return fs.New(cfg.DataDir)
}

func newWarehouse(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*warehouse.Database, error) {
	return warehouse.New(ctx, warehouse.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
}

// newPublisher falls back to a no-op publisher when the broker is not
// reachable. One-shot CLI runs work without NATS; only worker deployments
// require it.
func newPublisher(cfg *config.Config, logger *zap.Logger) messaging.Publisher {
	publisher, err := messaging.NewPublisher(logger, cfg)
	if err != nil {
		logger.Warn("NATS unavailable, split events will not be published", zap.Error(err))
		return messaging.Nop()
	}
	return publisher
}

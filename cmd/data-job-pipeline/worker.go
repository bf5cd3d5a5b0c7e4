package main

import (
	"context"

	"github.com/m-p-esser/data-job-pipeline/internal/cache"
	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/events"
	"github.com/m-p-esser/data-job-pipeline/internal/messaging"
	"github.com/m-p-esser/data-job-pipeline/internal/pipeline"
	"github.com/m-p-esser/data-job-pipeline/internal/scheduler"
	"github.com/m-p-esser/data-job-pipeline/internal/source"
	"github.com/m-p-esser/data-job-pipeline/internal/store"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"
	"github.com/m-p-esser/data-job-pipeline/internal/warehouse"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the pipeline on a schedule with incremental NATS loading",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		if cfg.TracingEnabled {
			shutdown, err := telemetry.InitTracer(ctx, "data-job-pipeline-worker", cfg.OTELCollectorURL, logger)
			if err != nil {
				logger.Warn("failed to initialize tracing", zap.Error(err))
			} else {
				defer shutdown(context.Background())
			}
		}

		app := fx.New(
			fx.Supply(cfg, logger),
			fx.Provide(
				newNATSConnection,
				newWorkerWarehouse,
				newWorkerRepository,
				newWorkerStore,
				newWorkerCache,
				newWorkerPublisher,
				newSourceClient,
				newWorkerLoader,
				newWorkerRunner,
				newWorkerScheduler,
				events.NewHandler,
			),
			fx.Invoke(
				func(handler *events.Handler, lc fx.Lifecycle) error {
					return handler.RegisterSubscriptions(lc)
				},
				startScheduler,
			),
		)

		if err := app.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return app.Stop(context.Background())
	},
}

func newNATSConnection(cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name("pipeline-worker"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}
	return nats.Connect(cfg.NATSURL, opts...)
}

func newWorkerWarehouse(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*warehouse.Database, error) {
	db, err := newWarehouse(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newWorkerRepository(db *warehouse.Database, logger *zap.Logger) *warehouse.Repository {
	return warehouse.NewRepository(db.Conn(), logger)
}

func newWorkerStore(cfg *config.Config) (store.Store, error) {
	return newStore(cfg)
}

func newWorkerCache(lc fx.Lifecycle, cfg *config.Config) cache.Cache {
	c := newCache(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c
}

func newWorkerPublisher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) messaging.Publisher {
	publisher := newPublisher(cfg, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			publisher.Close()
			return nil
		},
	})
	return publisher
}

func newSourceClient(logger *zap.Logger, cfg *config.Config, c cache.Cache) source.Client {
	return source.NewClient(logger, cfg, c)
}

func newWorkerLoader(s store.Store, repo *warehouse.Repository, cfg *config.Config, logger *zap.Logger) *pipeline.Loader {
	return pipeline.NewLoader(s, repo, cfg, logger)
}

func newWorkerRunner(
	client source.Client,
	s store.Store,
	publisher messaging.Publisher,
	repo *warehouse.Repository,
	loader *pipeline.Loader,
	cfg *config.Config,
	logger *zap.Logger,
) *pipeline.Runner {
	return pipeline.NewRunner(logger,
		pipeline.NewRequester(client, s, cfg, logger),
		pipeline.NewSplitter(s, publisher, cfg, logger),
		loader,
		pipeline.NewTransformer(repo, cfg.KeywordCategories(), logger),
	)
}

func newWorkerScheduler(runner *pipeline.Runner, cfg *config.Config, logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.New(runner, cfg.PollingInterval, logger)
}

func startScheduler(sched *scheduler.Scheduler, logger *zap.Logger, lc fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := sched.Start(ctx); err != nil && err != context.Canceled {
					logger.Error("scheduler stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			sched.Stop()
			return nil
		},
	})
}

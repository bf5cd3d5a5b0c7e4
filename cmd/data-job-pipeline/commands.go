package main

import (
	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/pipeline"
	"github.com/m-p-esser/data-job-pipeline/internal/source"
	"github.com/m-p-esser/data-job-pipeline/internal/warehouse"
	"github.com/m-p-esser/data-job-pipeline/internal/warehouse/schema"
	"github.com/m-p-esser/data-job-pipeline/internal/warehouse/schema/migrations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the warehouse tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		db, err := newWarehouse(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := schema.NewMigrator(db.Conn(), logger)
		if err := migrator.ApplyPending(ctx, migrations.All()); err != nil {
			return err
		}

		logger.Info("all migrations completed successfully")
		return nil
	},
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Fetch search results and land raw envelopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		s, err := newStore(cfg)
		if err != nil {
			return err
		}

		c := newCache(cfg)
		defer c.Close()

		client := source.NewClient(logger, cfg, c)
		requester := pipeline.NewRequester(client, s, cfg, logger)
		return requester.Run(cmd.Context())
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split raw envelopes into per-entity artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		s, err := newStore(cfg)
		if err != nil {
			return err
		}

		publisher := newPublisher(cfg, logger)
		defer publisher.Close()

		splitter := pipeline.NewSplitter(s, publisher, cfg, logger)
		return splitter.Run(cmd.Context())
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load split artifacts into the raw warehouse tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		s, err := newStore(cfg)
		if err != nil {
			return err
		}

		db, err := newWarehouse(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := warehouse.NewRepository(db.Conn(), logger)
		loader := pipeline.NewLoader(s, repo, cfg, logger)
		return loader.Run(ctx)
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Build the final feature-engineered table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		db, err := newWarehouse(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := warehouse.NewRepository(db.Conn(), logger)
		transformer := pipeline.NewTransformer(repo, cfg.KeywordCategories(), logger)
		return transformer.Run(ctx)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: request, split, load, transform",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		s, err := newStore(cfg)
		if err != nil {
			return err
		}

		c := newCache(cfg)
		defer c.Close()

		publisher := newPublisher(cfg, logger)
		defer publisher.Close()

		db, err := newWarehouse(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := warehouse.NewRepository(db.Conn(), logger)
		client := source.NewClient(logger, cfg, c)

		runner := pipeline.NewRunner(logger,
			pipeline.NewRequester(client, s, cfg, logger),
			pipeline.NewSplitter(s, publisher, cfg, logger),
			pipeline.NewLoader(s, repo, cfg, logger),
			pipeline.NewTransformer(repo, cfg.KeywordCategories(), logger),
		)
		return runner.Run(ctx)
	},
}

var cleanData bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Purge the request cache, optionally the landed artifacts too",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		c := newCache(cfg)
		defer c.Close()

		if err := c.Clear(ctx); err != nil {
			return err
		}
		logger.Info("purged request cache", zap.String("backend", cfg.CacheBackend))

		if !cleanData {
			return nil
		}

		s, err := newStore(cfg)
		if err != nil {
			return err
		}

		layout := pipeline.NewLayout(cfg)
		deleted := 0
		for _, prefix := range []string{
			layout.RawSuccessPrefix(),
			layout.RawErrorPrefix(),
			layout.ProcessedPrefix(),
		} {
			keys, err := s.List(ctx, prefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := s.Delete(ctx, key); err != nil {
					return err
				}
				deleted++
			}
		}

		logger.Info("purged landed artifacts", zap.Int("objects", deleted))
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanData, "data", false, "also delete landed raw and processed objects")
}

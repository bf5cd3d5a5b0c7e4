package pipeline

import (
	"context"

	"github.com/m-p-esser/data-job-pipeline/internal/enrich"
	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"go.uber.org/zap"
)

// FinalWriter is the slice of the warehouse repository the transform stage
// needs.
type FinalWriter interface {
	JoinedJobs(ctx context.Context) ([]models.JoinedJob, error)
	InsertFinalJobs(ctx context.Context, rows []models.FinalJobRow) error
}

// Transformer builds the deduplicated, feature-engineered final table from
// the raw tables.
type Transformer struct {
	writer   FinalWriter
	keywords map[string][]string
	logger   *zap.Logger
}

func NewTransformer(writer FinalWriter, keywords map[string][]string, logger *zap.Logger) *Transformer {
	return &Transformer{
		writer:   writer,
		keywords: keywords,
		logger:   logger,
	}
}

func (t *Transformer) Name() string { return "transform" }

func (t *Transformer) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Transformer.Run")
	defer span.End()

	jobs, err := t.writer.JoinedJobs(ctx)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("loading joined job results", err)
	}
	span.SetAttributes(telemetry.Int("raw_jobs.count", len(jobs)))

	if len(jobs) == 0 {
		t.logger.Info("no raw job results to transform")
		return nil
	}

	rows := enrich.BuildFinalRows(jobs, t.keywords)
	duplicates := len(jobs) - len(rows)

	span.SetAttributes(
		telemetry.Int("final_rows.count", len(rows)),
		telemetry.Int("duplicates.count", duplicates),
	)
	t.logger.Info("engineered final job rows",
		zap.Int("raw_jobs", len(jobs)),
		zap.Int("final_rows", len(rows)),
		zap.Int("duplicates", duplicates))

	if err := t.writer.InsertFinalJobs(ctx, rows); err != nil {
		span.RecordError(err)
		return errors.Internal("inserting final job rows", err)
	}

	return nil
}

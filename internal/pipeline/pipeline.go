package pipeline

import (
	"context"

	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("data-job-pipeline/pipeline")

// Stage is one step of the pipeline. Stages are independent; the runner
// gives them sequencing semantics.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner executes stages in declared order. The first stage error aborts
// the remaining stages, matching the behavior of a shell task runner where
// a failing step stops the target.
type Runner struct {
	stages []Stage
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger, stages ...Stage) *Runner {
	return &Runner{
		stages: stages,
		logger: logger,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Runner.Run")
	defer span.End()
	span.SetAttributes(telemetry.Int("stages.count", len(r.stages)))

	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return err
		}

		r.logger.Info("starting pipeline stage", zap.String("stage", stage.Name()))

		if err := stage.Run(ctx); err != nil {
			span.RecordError(err)
			r.logger.Error("pipeline stage failed",
				zap.String("stage", stage.Name()),
				zap.Error(err))
			return errors.Internal("stage "+stage.Name()+" failed", err)
		}

		r.logger.Info("completed pipeline stage", zap.String("stage", stage.Name()))
	}

	return nil
}

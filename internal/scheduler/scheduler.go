package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("data-job-pipeline/scheduler")

// Runner is satisfied by pipeline.Runner.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler runs the pipeline immediately and then on a fixed interval.
// Run errors are logged and the loop continues; only context cancellation
// stops it.
type Scheduler struct {
	runner   Runner
	logger   *zap.Logger
	interval time.Duration
	mutex    sync.Mutex
	isActive bool
}

func New(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Scheduler.Start")
	defer span.End()

	s.mutex.Lock()
	if s.isActive {
		s.mutex.Unlock()
		return nil
	}
	s.isActive = true
	s.mutex.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.isActive = false
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Scheduler.runOnce")
	defer span.End()

	started := time.Now()
	s.logger.Info("starting scheduled pipeline run")

	if err := s.runner.Run(ctx); err != nil {
		span.RecordError(err)
		s.logger.Error("scheduled pipeline run failed", zap.Error(err))
		return
	}

	s.logger.Info("completed scheduled pipeline run",
		zap.Duration("duration", time.Since(started)))
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/source"
	"github.com/m-p-esser/data-job-pipeline/internal/store"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"go.uber.org/zap"
)

type requestStats struct {
	landed int32
	failed int32
	errors int32
}

// Requester fetches every configured query/location/offset combination and
// lands the raw envelopes in the object store. Envelopes with an error
// status land under raw/error/ so they stay inspectable without entering
// the split stage.
type Requester struct {
	client source.Client
	store  store.Store
	layout Layout
	config *config.Config
	logger *zap.Logger
}

func NewRequester(client source.Client, s store.Store, cfg *config.Config, logger *zap.Logger) *Requester {
	return &Requester{
		client: client,
		store:  s,
		layout: NewLayout(cfg),
		config: cfg,
		logger: logger,
	}
}

func (r *Requester) Name() string { return "request" }

func (r *Requester) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Requester.Run")
	defer span.End()

	combinations := r.config.SearchCombinations()
	span.SetAttributes(telemetry.Int("combinations.count", len(combinations)))
	r.logger.Info("starting search requests", zap.Int("combinations", len(combinations)))

	if len(combinations) == 0 {
		return nil
	}

	stats := &requestStats{}
	combinationChan := make(chan config.SearchCombination)

	var wg sync.WaitGroup
	workers := r.config.RequestWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for combination := range combinationChan {
				if err := r.requestAndLand(ctx, combination, stats); err != nil {
					atomic.AddInt32(&stats.failed, 1)
					r.logger.Error("failed to process search combination",
						zap.String("query", combination.Query),
						zap.String("location", combination.Location),
						zap.Int("start", combination.Start),
						zap.Error(err))
				}
			}
		}()
	}

	for _, combination := range combinations {
		select {
		case <-ctx.Done():
			close(combinationChan)
			wg.Wait()
			return ctx.Err()
		case combinationChan <- combination:
		}
	}
	close(combinationChan)
	wg.Wait()

	landed := atomic.LoadInt32(&stats.landed)
	failed := atomic.LoadInt32(&stats.failed)
	errored := atomic.LoadInt32(&stats.errors)

	span.SetAttributes(
		telemetry.Int("envelopes.landed", int(landed)),
		telemetry.Int("envelopes.error_status", int(errored)),
		telemetry.Int("combinations.failed", int(failed)),
	)
	r.logger.Info("completed search requests",
		zap.Int32("landed", landed),
		zap.Int32("error_status", errored),
		zap.Int32("failed", failed))

	if landed == 0 && failed > 0 {
		return errors.Internal(fmt.Sprintf("all %d search combinations failed", failed), nil)
	}
	return nil
}

func (r *Requester) requestAndLand(ctx context.Context, combination config.SearchCombination, stats *requestStats) error {
	envelope, err := r.client.Search(ctx, source.Params{
		Query:    combination.Query,
		Location: combination.Location,
		Start:    combination.Start,
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return errors.Internal("marshaling envelope", err)
	}

	key := r.layout.RawKey(envelope.Successful(), envelope.SearchMetadata.ID)
	if err := r.store.Save(ctx, key, data); err != nil {
		return errors.Internal("saving envelope", err)
	}

	atomic.AddInt32(&stats.landed, 1)
	if !envelope.Successful() {
		atomic.AddInt32(&stats.errors, 1)
	}

	r.logger.Debug("landed search envelope",
		zap.String("search_id", envelope.SearchMetadata.ID),
		zap.String("key", key),
		zap.Int("job_results", len(envelope.JobResults)))
	return nil
}

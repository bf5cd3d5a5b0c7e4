package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/messaging"
	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/store"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"go.uber.org/zap"
)

// Splitter breaks each successful raw envelope into three per-entity
// objects under processed/ and announces every split on the bus. Already
// split searches are skipped, so reruns are cheap.
type Splitter struct {
	store     store.Store
	publisher messaging.Publisher
	layout    Layout
	logger    *zap.Logger
}

func NewSplitter(s store.Store, publisher messaging.Publisher, cfg *config.Config, logger *zap.Logger) *Splitter {
	return &Splitter{
		store:     s,
		publisher: publisher,
		layout:    NewLayout(cfg),
		logger:    logger,
	}
}

func (s *Splitter) Name() string { return "split" }

func (s *Splitter) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Splitter.Run")
	defer span.End()

	rawKeys, err := s.store.List(ctx, s.layout.RawSuccessPrefix())
	if err != nil {
		span.RecordError(err)
		return errors.Internal("listing raw envelopes", err)
	}

	processedKeys, err := s.store.List(ctx, s.layout.ProcessedPrefix())
	if err != nil {
		span.RecordError(err)
		return errors.Internal("listing processed objects", err)
	}
	// A split counts as done only once its results part exists. The parts
	// are written metadata, parameters, results in order, so a crash
	// mid-split leaves a search the rerun picks up again; this is also the
	// key the loader admits searches by.
	alreadySplit := make(map[string]struct{}, len(processedKeys))
	for _, key := range processedKeys {
		id := s.layout.SearchIDFromKey(key)
		if id == "" {
			continue
		}
		if key == s.layout.ResultsKey(id) {
			alreadySplit[id] = struct{}{}
		}
	}

	span.SetAttributes(
		telemetry.Int("raw.count", len(rawKeys)),
		telemetry.Int("already_split.count", len(alreadySplit)),
	)

	split := 0
	skipped := 0
	for _, key := range rawKeys {
		if err := ctx.Err(); err != nil {
			return err
		}

		searchID := s.layout.SearchIDFromKey(key)
		if searchID == "" {
			s.logger.Warn("skipping raw object with unexpected key", zap.String("key", key))
			continue
		}
		if _, done := alreadySplit[searchID]; done {
			skipped++
			continue
		}

		if err := s.splitEnvelope(ctx, key, searchID); err != nil {
			span.RecordError(err)
			return err
		}
		split++
	}

	span.SetAttributes(
		telemetry.Int("split.count", split),
		telemetry.Int("skipped.count", skipped),
	)
	s.logger.Info("completed splitting raw envelopes",
		zap.Int("split", split),
		zap.Int("skipped", skipped))
	return nil
}

func (s *Splitter) splitEnvelope(ctx context.Context, key, searchID string) error {
	data, err := s.store.Load(ctx, key)
	if err != nil {
		return errors.Internal("loading raw envelope "+key, err)
	}

	var envelope models.SearchEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return errors.InvalidInput("decoding raw envelope "+key, err)
	}

	parts := []struct {
		key   string
		value interface{}
	}{
		{s.layout.MetadataKey(searchID), envelope.SearchMetadata},
		{s.layout.ParametersKey(searchID), envelope.SearchParameters},
		{s.layout.ResultsKey(searchID), envelope.JobResults},
	}

	for _, part := range parts {
		partData, err := json.Marshal(part.value)
		if err != nil {
			return errors.Internal("marshaling split part "+part.key, err)
		}
		if err := s.store.Save(ctx, part.key, partData); err != nil {
			return errors.Internal("saving split part "+part.key, err)
		}
		s.logger.Debug("saved split part",
			zap.String("search_id", searchID),
			zap.String("key", part.key))
	}

	event := &messaging.SplitEvent{
		SearchID:   searchID,
		JobResults: len(envelope.JobResults),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishSplit(ctx, event); err != nil {
		// The load stage discovers splits from the store on its own, so a
		// missing broker must not fail the split.
		s.logger.Warn("failed to publish split event",
			zap.String("search_id", searchID),
			zap.Error(err))
	}

	return nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/messaging"
	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	events []*messaging.SplitEvent
	err    error
}

func (p *recordingPublisher) PublishSplit(ctx context.Context, event *messaging.SplitEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func landEnvelope(t *testing.T, s store.Store, layout Layout, searchID string, jobs int) {
	t.Helper()

	envelope := models.SearchEnvelope{
		SearchMetadata: models.SearchMetadata{
			ID:        searchID,
			Status:    models.StatusSuccess,
			CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		SearchParameters: models.SearchParameters{
			Engine: "jobs",
			Query:  "Data Analyst",
		},
	}
	for i := 0; i < jobs; i++ {
		envelope.JobResults = append(envelope.JobResults, models.JobResult{
			JobID: searchID + "-job",
			Title: "Data Analyst",
		})
	}

	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), layout.RawKey(true, searchID), data))
}

func TestSplitter_SplitsRawEnvelopes(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	publisher := &recordingPublisher{}

	landEnvelope(t, s, layout, "s1", 2)
	landEnvelope(t, s, layout, "s2", 1)

	splitter := NewSplitter(s, publisher, cfg, zap.NewNop())
	require.NoError(t, splitter.Run(context.Background()))

	ctx := context.Background()
	for _, searchID := range []string{"s1", "s2"} {
		for _, key := range []string{
			layout.MetadataKey(searchID),
			layout.ParametersKey(searchID),
			layout.ResultsKey(searchID),
		} {
			_, err := s.Load(ctx, key)
			assert.NoError(t, err, "expected split part %s", key)
		}
	}

	require.Len(t, publisher.events, 2)
	assert.Equal(t, "s1", publisher.events[0].SearchID)
	assert.Equal(t, 2, publisher.events[0].JobResults)

	data, err := s.Load(ctx, layout.ResultsKey("s1"))
	require.NoError(t, err)
	var results []models.JobResult
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 2)
}

func TestSplitter_SkipsAlreadySplit(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	publisher := &recordingPublisher{}

	landEnvelope(t, s, layout, "s1", 1)

	splitter := NewSplitter(s, publisher, cfg, zap.NewNop())
	require.NoError(t, splitter.Run(context.Background()))
	require.NoError(t, splitter.Run(context.Background()))

	// The second run finds the processed objects and publishes nothing new.
	assert.Len(t, publisher.events, 1)
}

func TestSplitter_ResumesPartialSplit(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	publisher := &recordingPublisher{}
	ctx := context.Background()

	landEnvelope(t, s, layout, "s1", 2)

	// A crash between the part writes leaves only the first parts behind;
	// the rerun must split the search again instead of skipping it.
	require.NoError(t, s.Save(ctx, layout.MetadataKey("s1"), []byte(`{"id":"s1"}`)))

	splitter := NewSplitter(s, publisher, cfg, zap.NewNop())
	require.NoError(t, splitter.Run(ctx))

	for _, key := range []string{
		layout.MetadataKey("s1"),
		layout.ParametersKey("s1"),
		layout.ResultsKey("s1"),
	} {
		_, err := s.Load(ctx, key)
		assert.NoError(t, err, "expected split part %s", key)
	}
	require.Len(t, publisher.events, 1)

	warehouse := newFakeWarehouse()
	loader := NewLoader(s, warehouse, cfg, zap.NewNop())
	require.NoError(t, loader.Run(ctx))

	assert.Contains(t, warehouse.metadata, "s1")
	assert.Contains(t, warehouse.parameters, "s1")
	assert.Len(t, warehouse.jobs["s1"], 2)
}

func TestSplitter_IgnoresErrorEnvelopes(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	publisher := &recordingPublisher{}

	envelope := models.SearchEnvelope{
		SearchMetadata: models.SearchMetadata{ID: "bad", Status: models.StatusError},
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), layout.RawKey(false, "bad"), data))

	splitter := NewSplitter(s, publisher, cfg, zap.NewNop())
	require.NoError(t, splitter.Run(context.Background()))

	assert.Empty(t, publisher.events)
	_, err = s.Load(context.Background(), layout.MetadataKey("bad"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSplitter_PublishFailureDoesNotFailSplit(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	publisher := &recordingPublisher{err: assert.AnError}

	landEnvelope(t, s, layout, "s1", 1)

	splitter := NewSplitter(s, publisher, cfg, zap.NewNop())
	require.NoError(t, splitter.Run(context.Background()))

	_, err := s.Load(context.Background(), layout.ResultsKey("s1"))
	assert.NoError(t, err)
}

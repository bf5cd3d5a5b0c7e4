package pipeline

import (
	"context"
	"testing"

	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWarehouse struct {
	metadata   map[string]models.MetadataRow
	parameters map[string]models.ParametersRow
	jobs       map[string][]models.JobRow
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{
		metadata:   map[string]models.MetadataRow{},
		parameters: map[string]models.ParametersRow{},
		jobs:       map[string][]models.JobRow{},
	}
}

func (w *fakeWarehouse) DistinctSearchIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	ids := map[string]struct{}{}
	switch table {
	case tableMetadata:
		for id := range w.metadata {
			ids[id] = struct{}{}
		}
	case tableParameters:
		for id := range w.parameters {
			ids[id] = struct{}{}
		}
	case tableResults:
		for id := range w.jobs {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (w *fakeWarehouse) InsertMetadata(ctx context.Context, row models.MetadataRow) error {
	w.metadata[row.SearchID] = row
	return nil
}

func (w *fakeWarehouse) InsertParameters(ctx context.Context, row models.ParametersRow) error {
	w.parameters[row.SearchID] = row
	return nil
}

func (w *fakeWarehouse) InsertJobs(ctx context.Context, rows []models.JobRow) error {
	if len(rows) > 0 {
		w.jobs[rows[0].SearchID] = rows
	}
	return nil
}

func splitSearch(t *testing.T, s store.Store, layout Layout, searchID string, jobs int) {
	t.Helper()
	landEnvelope(t, s, layout, searchID, jobs)

	splitter := NewSplitter(s, &recordingPublisher{}, testPipelineConfig(), zap.NewNop())
	require.NoError(t, splitter.Run(context.Background()))
}

func TestLoader_LoadsSplitSearches(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	warehouse := newFakeWarehouse()

	splitSearch(t, s, layout, "s1", 2)
	splitSearch(t, s, layout, "s2", 1)

	loader := NewLoader(s, warehouse, cfg, zap.NewNop())
	require.NoError(t, loader.Run(context.Background()))

	assert.Len(t, warehouse.metadata, 2)
	assert.Len(t, warehouse.parameters, 2)
	require.Len(t, warehouse.jobs["s1"], 2)
	assert.Equal(t, "s1", warehouse.jobs["s1"][0].SearchID)
	assert.Equal(t, "Data Analyst", warehouse.jobs["s1"][0].Title)
}

func TestLoader_SkipsAlreadyLoadedSearches(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	warehouse := newFakeWarehouse()

	splitSearch(t, s, layout, "s1", 1)

	warehouse.metadata["s1"] = models.MetadataRow{SearchID: "s1", Status: "preloaded"}
	warehouse.parameters["s1"] = models.ParametersRow{SearchID: "s1"}
	warehouse.jobs["s1"] = []models.JobRow{{SearchID: "s1", JobID: "preloaded"}}

	loader := NewLoader(s, warehouse, cfg, zap.NewNop())
	require.NoError(t, loader.Run(context.Background()))

	assert.Equal(t, "preloaded", warehouse.metadata["s1"].Status)
	assert.Equal(t, "preloaded", warehouse.jobs["s1"][0].JobID)
}

func TestLoader_HealsPartiallyLoadedSearches(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	warehouse := newFakeWarehouse()

	splitSearch(t, s, layout, "s1", 1)

	// Metadata made it in on a previous run, the other tables did not.
	warehouse.metadata["s1"] = models.MetadataRow{SearchID: "s1", Status: "preloaded"}

	loader := NewLoader(s, warehouse, cfg, zap.NewNop())
	require.NoError(t, loader.Run(context.Background()))

	assert.Equal(t, "preloaded", warehouse.metadata["s1"].Status)
	assert.Contains(t, warehouse.parameters, "s1")
	assert.Contains(t, warehouse.jobs, "s1")
}

func TestLoader_ContinuesPastFailingSearch(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	warehouse := newFakeWarehouse()

	splitSearch(t, s, layout, "s1", 1)
	splitSearch(t, s, layout, "s2", 1)

	// s1 loses its metadata object and can not load completely.
	require.NoError(t, s.Delete(context.Background(), layout.MetadataKey("s1")))

	loader := NewLoader(s, warehouse, cfg, zap.NewNop())
	err := loader.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "s1")
	assert.NotContains(t, warehouse.metadata, "s1")
	assert.Contains(t, warehouse.metadata, "s2")
	assert.Contains(t, warehouse.jobs, "s2")
}

func TestLoader_LoadSearchSingle(t *testing.T) {
	cfg := testPipelineConfig()
	layout := NewLayout(cfg)
	s := newPipelineStore(t)
	warehouse := newFakeWarehouse()

	splitSearch(t, s, layout, "s1", 3)

	loader := NewLoader(s, warehouse, cfg, zap.NewNop())
	require.NoError(t, loader.LoadSearch(context.Background(), "s1"))

	assert.Contains(t, warehouse.metadata, "s1")
	assert.Contains(t, warehouse.parameters, "s1")
	assert.Len(t, warehouse.jobs["s1"], 3)
}

func TestLoader_EmptyStoreIsNoop(t *testing.T) {
	cfg := testPipelineConfig()
	warehouse := newFakeWarehouse()

	loader := NewLoader(newPipelineStore(t), warehouse, cfg, zap.NewNop())
	require.NoError(t, loader.Run(context.Background()))

	assert.Empty(t, warehouse.metadata)
}

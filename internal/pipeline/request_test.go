package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	mu       sync.Mutex
	searches []source.Params
	respond  func(params source.Params) (*models.SearchEnvelope, error)
}

func (f *fakeSource) Search(ctx context.Context, params source.Params) (*models.SearchEnvelope, error) {
	f.mu.Lock()
	f.searches = append(f.searches, params)
	f.mu.Unlock()
	return f.respond(params)
}

func successEnvelope(params source.Params) *models.SearchEnvelope {
	return &models.SearchEnvelope{
		SearchMetadata: models.SearchMetadata{
			ID:        params.Query + "-" + params.Location,
			Status:    models.StatusSuccess,
			CreatedAt: time.Now().UTC(),
		},
		SearchParameters: models.SearchParameters{
			Query:    params.Query,
			Location: params.Location,
			Start:    params.Start,
		},
		JobResults: []models.JobResult{
			{JobID: "j1", Title: "Data Engineer"},
		},
	}
}

func TestRequester_LandsAllCombinations(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.SearchQueries = []string{"Data Analyst", "Data Engineer"}
	cfg.SearchLocations = []string{"Berlin,Germany"}
	cfg.SearchOffsets = []int{0, 10}
	cfg.RequestWorkers = 2

	client := &fakeSource{
		respond: func(params source.Params) (*models.SearchEnvelope, error) {
			return successEnvelope(params), nil
		},
	}
	s := newPipelineStore(t)

	requester := NewRequester(client, s, cfg, zap.NewNop())
	require.NoError(t, requester.Run(context.Background()))

	client.mu.Lock()
	assert.Len(t, client.searches, 4)
	client.mu.Unlock()

	keys, err := s.List(context.Background(), "raw/successful/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRequester_ErrorStatusLandsUnderErrorPrefix(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.SearchQueries = []string{"Data Analyst"}
	cfg.SearchLocations = []string{"Berlin,Germany"}
	cfg.SearchOffsets = []int{0}

	client := &fakeSource{
		respond: func(params source.Params) (*models.SearchEnvelope, error) {
			envelope := successEnvelope(params)
			envelope.SearchMetadata.Status = models.StatusError
			return envelope, nil
		},
	}
	s := newPipelineStore(t)

	requester := NewRequester(client, s, cfg, zap.NewNop())
	require.NoError(t, requester.Run(context.Background()))

	errorKeys, err := s.List(context.Background(), "raw/error/")
	require.NoError(t, err)
	assert.Len(t, errorKeys, 1)

	successKeys, err := s.List(context.Background(), "raw/successful/")
	require.NoError(t, err)
	assert.Empty(t, successKeys)
}

func TestRequester_FailsWhenNothingLands(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.SearchQueries = []string{"Data Analyst"}
	cfg.SearchLocations = []string{"Berlin,Germany"}
	cfg.SearchOffsets = []int{0}

	client := &fakeSource{
		respond: func(params source.Params) (*models.SearchEnvelope, error) {
			return nil, assert.AnError
		},
	}

	requester := NewRequester(client, newPipelineStore(t), cfg, zap.NewNop())
	err := requester.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search combinations failed")
}

func TestRequester_ToleratesPartialFailure(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.SearchQueries = []string{"Data Analyst", "Data Engineer"}
	cfg.SearchLocations = []string{"Berlin,Germany"}
	cfg.SearchOffsets = []int{0}
	cfg.RequestWorkers = 1

	client := &fakeSource{
		respond: func(params source.Params) (*models.SearchEnvelope, error) {
			if params.Query == "Data Engineer" {
				return nil, assert.AnError
			}
			return successEnvelope(params), nil
		},
	}
	s := newPipelineStore(t)

	requester := NewRequester(client, s, cfg, zap.NewNop())
	require.NoError(t, requester.Run(context.Background()))

	keys, err := s.List(context.Background(), "raw/successful/")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestRequester_NoCombinationsIsNoop(t *testing.T) {
	cfg := testPipelineConfig()

	client := &fakeSource{
		respond: func(params source.Params) (*models.SearchEnvelope, error) {
			return successEnvelope(params), nil
		},
	}

	requester := NewRequester(client, newPipelineStore(t), cfg, zap.NewNop())
	require.NoError(t, requester.Run(context.Background()))
	assert.Empty(t, client.searches)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/store"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"go.uber.org/zap"
)

// WarehouseWriter is the slice of the warehouse repository the load stage
// needs.
type WarehouseWriter interface {
	DistinctSearchIDs(ctx context.Context, table string) (map[string]struct{}, error)
	InsertMetadata(ctx context.Context, row models.MetadataRow) error
	InsertParameters(ctx context.Context, row models.ParametersRow) error
	InsertJobs(ctx context.Context, rows []models.JobRow) error
}

// Table names the loader diffs against. Kept here so the loader does not
// depend on the warehouse package directly.
const (
	tableMetadata   = "raw_search_metadata"
	tableParameters = "raw_search_parameters"
	tableResults    = "raw_job_results"
)

// Loader moves split artifacts into the raw warehouse tables. For every
// table it diffs the search IDs present in the store against the IDs
// already loaded, then heals the difference table by table.
type Loader struct {
	store  store.Store
	writer WarehouseWriter
	layout Layout
	logger *zap.Logger
}

func NewLoader(s store.Store, writer WarehouseWriter, cfg *config.Config, logger *zap.Logger) *Loader {
	return &Loader{
		store:  s,
		writer: writer,
		layout: NewLayout(cfg),
		logger: logger,
	}
}

func (l *Loader) Name() string { return "load" }

func (l *Loader) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Loader.Run")
	defer span.End()

	splitIDs, err := l.splitSearchIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(telemetry.Int("split_ids.count", len(splitIDs)))

	loaded := map[string]map[string]struct{}{}
	for _, table := range []string{tableMetadata, tableParameters, tableResults} {
		ids, err := l.writer.DistinctSearchIDs(ctx, table)
		if err != nil {
			span.RecordError(err)
			return errors.Internal("reading loaded search ids from "+table, err)
		}
		loaded[table] = ids
	}

	var failed []string
	loadedCount := 0
	for _, searchID := range splitIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.loadSearch(ctx, searchID, loaded); err != nil {
			l.logger.Error("failed to load search",
				zap.String("search_id", searchID),
				zap.Error(err))
			failed = append(failed, searchID)
			continue
		}
		loadedCount++
	}

	span.SetAttributes(
		telemetry.Int("searches.loaded", loadedCount),
		telemetry.Int("searches.failed", len(failed)),
	)
	l.logger.Info("completed warehouse load",
		zap.Int("loaded", loadedCount),
		zap.Int("failed", len(failed)))

	if len(failed) > 0 {
		return errors.Internal(fmt.Sprintf("failed to load searches: %s", strings.Join(failed, ", ")), nil)
	}
	return nil
}

// LoadSearch loads a single search into every raw table it is missing
// from. Used by the NATS subscriber for incremental loading.
func (l *Loader) LoadSearch(ctx context.Context, searchID string) error {
	ctx, span := tracer.Start(ctx, "Loader.LoadSearch")
	defer span.End()
	span.SetAttributes(telemetry.String("search_id", searchID))

	loaded := map[string]map[string]struct{}{}
	for _, table := range []string{tableMetadata, tableParameters, tableResults} {
		ids, err := l.writer.DistinctSearchIDs(ctx, table)
		if err != nil {
			span.RecordError(err)
			return errors.Internal("reading loaded search ids from "+table, err)
		}
		loaded[table] = ids
	}

	return l.loadSearch(ctx, searchID, loaded)
}

// splitSearchIDs derives the set of fully split searches from the
// processed/ prefix. A search counts as split once its results object
// exists.
func (l *Loader) splitSearchIDs(ctx context.Context) ([]string, error) {
	keys, err := l.store.List(ctx, l.layout.ProcessedPrefix())
	if err != nil {
		return nil, errors.Internal("listing processed objects", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		searchID := l.layout.SearchIDFromKey(key)
		if searchID == "" {
			continue
		}
		if key == l.layout.ResultsKey(searchID) {
			ids = append(ids, searchID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Loader) loadSearch(ctx context.Context, searchID string, loaded map[string]map[string]struct{}) error {
	if _, ok := loaded[tableMetadata][searchID]; !ok {
		row, err := l.metadataRow(ctx, searchID)
		if err != nil {
			return err
		}
		if err := l.writer.InsertMetadata(ctx, row); err != nil {
			return err
		}
		l.logger.Debug("loaded search metadata", zap.String("search_id", searchID))
	}

	if _, ok := loaded[tableParameters][searchID]; !ok {
		row, err := l.parametersRow(ctx, searchID)
		if err != nil {
			return err
		}
		if err := l.writer.InsertParameters(ctx, row); err != nil {
			return err
		}
		l.logger.Debug("loaded search parameters", zap.String("search_id", searchID))
	}

	if _, ok := loaded[tableResults][searchID]; !ok {
		rows, err := l.jobRows(ctx, searchID)
		if err != nil {
			return err
		}
		if err := l.writer.InsertJobs(ctx, rows); err != nil {
			return err
		}
		l.logger.Debug("loaded job results",
			zap.String("search_id", searchID),
			zap.Int("rows", len(rows)))
	}

	return nil
}

func (l *Loader) metadataRow(ctx context.Context, searchID string) (models.MetadataRow, error) {
	var metadata models.SearchMetadata
	if err := l.loadJSON(ctx, l.layout.MetadataKey(searchID), &metadata); err != nil {
		return models.MetadataRow{}, err
	}
	return metadata.Row(), nil
}

func (l *Loader) parametersRow(ctx context.Context, searchID string) (models.ParametersRow, error) {
	var parameters models.SearchParameters
	if err := l.loadJSON(ctx, l.layout.ParametersKey(searchID), &parameters); err != nil {
		return models.ParametersRow{}, err
	}
	return parameters.Row(searchID), nil
}

func (l *Loader) jobRows(ctx context.Context, searchID string) ([]models.JobRow, error) {
	var results []models.JobResult
	if err := l.loadJSON(ctx, l.layout.ResultsKey(searchID), &results); err != nil {
		return nil, err
	}
	return models.JobRowsFor(searchID, results), nil
}

func (l *Loader) loadJSON(ctx context.Context, key string, value interface{}) error {
	data, err := l.store.Load(ctx, key)
	if err == store.ErrNotFound {
		return errors.NotFound("split object missing: "+key, nil)
	}
	if err != nil {
		return errors.Internal("loading split object "+key, err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return errors.InvalidInput("decoding split object "+key, err)
	}
	return nil
}

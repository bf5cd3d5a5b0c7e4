package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("data-job-pipeline/warehouse")

const (
	TableSearchMetadata   = "raw_search_metadata"
	TableSearchParameters = "raw_search_parameters"
	TableJobResults       = "raw_job_results"
	TableFinalJobs        = "final_jobs"
)

// RawTables lists the tables fed by the load stage.
var RawTables = []string{TableSearchMetadata, TableSearchParameters, TableJobResults}

var knownTables = map[string]struct{}{
	TableSearchMetadata:   {},
	TableSearchParameters: {},
	TableJobResults:       {},
	TableFinalJobs:        {},
}

// Repository owns all warehouse SQL.
type Repository struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

func NewRepository(conn clickhouse.Conn, logger *zap.Logger) *Repository {
	return &Repository{
		conn:   conn,
		logger: logger,
	}
}

// DistinctSearchIDs returns the search IDs already present in a raw table.
func (r *Repository) DistinctSearchIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	ctx, span := tracer.Start(ctx, "DistinctSearchIDs")
	defer span.End()
	span.SetAttributes(telemetry.String("warehouse.table", table))

	if _, ok := knownTables[table]; !ok {
		return nil, fmt.Errorf("unknown table: %s", table)
	}

	query := fmt.Sprintf("SELECT DISTINCT search_id FROM %s", table)
	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query distinct search ids from %s: %w", table, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan search id: %w", err)
		}
		ids[id] = struct{}{}
	}

	span.SetAttributes(telemetry.Int("search_ids.count", len(ids)))
	return ids, nil
}

func (r *Repository) InsertMetadata(ctx context.Context, row models.MetadataRow) error {
	ctx, span := tracer.Start(ctx, "InsertMetadata")
	defer span.End()

	query := `
		INSERT INTO raw_search_metadata (search_id, status, created_at, jobs_url)
		VALUES (?, ?, ?, ?)
	`
	if err := r.conn.Exec(ctx, query, row.SearchID, row.Status, row.CreatedAt, row.JobsURL); err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert search metadata: %w", err)
	}
	return nil
}

func (r *Repository) InsertParameters(ctx context.Context, row models.ParametersRow) error {
	ctx, span := tracer.Start(ctx, "InsertParameters")
	defer span.End()

	query := `
		INSERT INTO raw_search_parameters (search_id, engine, query, location, language, country, start_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if err := r.conn.Exec(ctx, query,
		row.SearchID,
		row.Engine,
		row.Query,
		row.Location,
		row.Language,
		row.Country,
		row.Start,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert search parameters: %w", err)
	}
	return nil
}

func (r *Repository) InsertJobs(ctx context.Context, rows []models.JobRow) error {
	ctx, span := tracer.Start(ctx, "InsertJobs")
	defer span.End()
	span.SetAttributes(telemetry.Int("rows.count", len(rows)))

	if len(rows) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO raw_job_results (search_id, job_id, title, company, location, via, description, extensions, loaded_at)
	`)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("prepare job results batch: %w", err)
	}

	loadedAt := time.Now().UTC()
	for _, row := range rows {
		if err := batch.Append(
			row.SearchID,
			row.JobID,
			row.Title,
			row.Company,
			row.Location,
			row.Via,
			row.Description,
			row.Extensions,
			loadedAt,
		); err != nil {
			span.RecordError(err)
			return fmt.Errorf("append job result: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send job results batch: %w", err)
	}
	return nil
}

// JoinedJobs reads every raw job result joined with the metadata and
// parameters of its search. The transform stage builds the final table from
// these rows.
func (r *Repository) JoinedJobs(ctx context.Context) ([]models.JoinedJob, error) {
	ctx, span := tracer.Start(ctx, "JoinedJobs")
	defer span.End()

	query := `
		SELECT
			jr.search_id,
			jr.job_id,
			jr.title,
			jr.company,
			jr.location,
			jr.via,
			jr.description,
			jr.extensions,
			sm.created_at,
			sp.query
		FROM raw_job_results jr
		JOIN raw_search_metadata sm ON jr.search_id = sm.search_id
		JOIN raw_search_parameters sp ON jr.search_id = sp.search_id
	`
	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query joined jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.JoinedJob
	for rows.Next() {
		var job models.JoinedJob
		if err := rows.Scan(
			&job.SearchID,
			&job.JobID,
			&job.Title,
			&job.Company,
			&job.Location,
			&job.Via,
			&job.Description,
			&job.Extensions,
			&job.CreatedAt,
			&job.Query,
		); err != nil {
			return nil, fmt.Errorf("scan joined job: %w", err)
		}
		jobs = append(jobs, job)
	}

	span.SetAttributes(telemetry.Int("rows.count", len(jobs)))
	r.logger.Debug("loaded joined job results", zap.Int("count", len(jobs)))
	return jobs, nil
}

func (r *Repository) InsertFinalJobs(ctx context.Context, rows []models.FinalJobRow) error {
	ctx, span := tracer.Start(ctx, "InsertFinalJobs")
	defer span.End()
	span.SetAttributes(telemetry.Int("rows.count", len(rows)))

	if len(rows) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO final_jobs (doc_id, search_id, title, company, location, via, description,
			description_chars, description_tokens, keywords, employment_type, posted_at, remote, created_at)
	`)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("prepare final jobs batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(
			row.DocID,
			row.SearchID,
			row.Title,
			row.Company,
			row.Location,
			row.Via,
			row.Description,
			row.DescriptionChars,
			row.DescriptionTokens,
			row.Keywords,
			row.EmploymentType,
			row.PostedAt,
			row.Remote,
			row.CreatedAt,
		); err != nil {
			span.RecordError(err)
			return fmt.Errorf("append final job: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send final jobs batch: %w", err)
	}
	return nil
}

package migrations

import "github.com/m-p-esser/data-job-pipeline/internal/warehouse/schema"

// All lists every migration in version order.
func All() []schema.Migration {
	return []schema.Migration{
		CreateRawSearchMetadataTable,
		CreateRawSearchParametersTable,
		CreateRawJobResultsTable,
		CreateFinalJobsTable,
	}
}

var CreateRawSearchMetadataTable = schema.Migration{
	Version:     1,
	Description: "Create raw search metadata table",
	Up: `
		CREATE TABLE IF NOT EXISTS raw_search_metadata (
			search_id String,
			status String,
			created_at DateTime,
			jobs_url String,
			PRIMARY KEY (search_id)
		) ENGINE = ReplacingMergeTree(created_at)
		ORDER BY (search_id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS raw_search_metadata`,
}

var CreateRawSearchParametersTable = schema.Migration{
	Version:     2,
	Description: "Create raw search parameters table",
	Up: `
		CREATE TABLE IF NOT EXISTS raw_search_parameters (
			search_id String,
			engine String,
			query String,
			location String,
			language String,
			country String,
			start_offset Int32,
			PRIMARY KEY (search_id)
		) ENGINE = ReplacingMergeTree()
		ORDER BY (search_id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS raw_search_parameters`,
}

var CreateRawJobResultsTable = schema.Migration{
	Version:     3,
	Description: "Create raw job results table",
	Up: `
		CREATE TABLE IF NOT EXISTS raw_job_results (
			search_id String,
			job_id String,
			title String,
			company String,
			location String,
			via String,
			description String,
			extensions Array(String),
			loaded_at DateTime DEFAULT now(),
			PRIMARY KEY (search_id, job_id)
		) ENGINE = ReplacingMergeTree(loaded_at)
		ORDER BY (search_id, job_id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS raw_job_results`,
}

var CreateFinalJobsTable = schema.Migration{
	Version:     4,
	Description: "Create final jobs table",
	Up: `
		CREATE TABLE IF NOT EXISTS final_jobs (
			doc_id String,
			search_id String,
			title String,
			company String,
			location String,
			via String,
			description String,
			description_chars UInt32,
			description_tokens UInt32,
			keywords Map(String, Array(String)),
			employment_type String,
			posted_at Nullable(DateTime),
			remote Bool,
			created_at DateTime,
			PRIMARY KEY (doc_id)
		) ENGINE = ReplacingMergeTree(created_at)
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (doc_id, created_at)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS final_jobs`,
}

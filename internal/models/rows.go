package models

import "time"

// MetadataRow, ParametersRow and JobRow are the warehouse representations of
// a split envelope, keyed by search ID.
type MetadataRow struct {
	SearchID  string
	Status    string
	CreatedAt time.Time
	JobsURL   string
}

type ParametersRow struct {
	SearchID string
	Engine   string
	Query    string
	Location string
	Language string
	Country  string
	Start    int32
}

type JobRow struct {
	SearchID    string
	JobID       string
	Title       string
	Company     string
	Location    string
	Via         string
	Description string
	Extensions  []string
}

// JoinedJob is one row of the raw-table join the transform stage reads:
// a job result enriched with the metadata and parameters of its search.
type JoinedJob struct {
	SearchID    string
	JobID       string
	Title       string
	Company     string
	Location    string
	Via         string
	Description string
	Extensions  []string
	CreatedAt   time.Time
	Query       string
}

// FinalJobRow is one deduplicated, feature-engineered record in the final
// table.
type FinalJobRow struct {
	DocID             string
	SearchID          string
	Title             string
	Company           string
	Location          string
	Via               string
	Description       string
	DescriptionChars  uint32
	DescriptionTokens uint32
	Keywords          map[string][]string
	EmploymentType    string
	PostedAt          *time.Time
	Remote            bool
	CreatedAt         time.Time
}

// Row converters live on the envelope parts because the load stage reads
// each part from its own split object, without the enclosing envelope.

func (m SearchMetadata) Row() MetadataRow {
	return MetadataRow{
		SearchID:  m.ID,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		JobsURL:   m.JobsURL,
	}
}

func (p SearchParameters) Row(searchID string) ParametersRow {
	return ParametersRow{
		SearchID: searchID,
		Engine:   p.Engine,
		Query:    p.Query,
		Location: p.Location,
		Language: p.Language,
		Country:  p.Country,
		Start:    int32(p.Start),
	}
}

func JobRowsFor(searchID string, results []JobResult) []JobRow {
	rows := make([]JobRow, 0, len(results))
	for _, result := range results {
		rows = append(rows, JobRow{
			SearchID:    searchID,
			JobID:       result.JobID,
			Title:       result.Title,
			Company:     result.CompanyName,
			Location:    result.Location,
			Via:         result.Via,
			Description: result.Description,
			Extensions:  result.Extensions,
		})
	}
	return rows
}

func (e SearchEnvelope) MetadataRow() MetadataRow {
	return e.SearchMetadata.Row()
}

func (e SearchEnvelope) ParametersRow() ParametersRow {
	return e.SearchParameters.Row(e.SearchMetadata.ID)
}

func (e SearchEnvelope) JobRows() []JobRow {
	return JobRowsFor(e.SearchMetadata.ID, e.JobResults)
}

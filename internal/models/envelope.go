package models

import (
	"encoding/json"
	"time"
)

const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

// SearchEnvelope is the raw payload returned by the jobs search API for one
// query/location/offset combination. It lands in the object store as-is and
// is the unit of work for the split stage.
type SearchEnvelope struct {
	SearchMetadata   SearchMetadata   `json:"search_metadata"`
	SearchParameters SearchParameters `json:"search_parameters"`
	JobResults       []JobResult      `json:"jobs_results"`
}

type SearchMetadata struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	JobsURL   string    `json:"jobs_url"`
}

type SearchParameters struct {
	Engine   string `json:"engine"`
	Query    string `json:"q"`
	Location string `json:"location"`
	Language string `json:"hl"`
	Country  string `json:"gl"`
	Start    int    `json:"start"`
}

type JobResult struct {
	JobID       string   `json:"job_id"`
	Title       string   `json:"title"`
	CompanyName string   `json:"company_name"`
	Location    string   `json:"location"`
	Via         string   `json:"via"`
	Description string   `json:"description"`
	Extensions  []string `json:"extensions"`
}

func (e SearchEnvelope) Successful() bool {
	return e.SearchMetadata.Status == StatusSuccess
}

func (e SearchEnvelope) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

func (e *SearchEnvelope) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

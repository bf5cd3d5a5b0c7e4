package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnvelope = `{
	"search_metadata": {
		"id": "64272d609c84ac2f3119a48e",
		"status": "Success",
		"created_at": "2024-03-01T10:00:00Z",
		"jobs_url": "https://jobs.example.com/search?q=Data+Analyst"
	},
	"search_parameters": {
		"engine": "jobs",
		"q": "Data Analyst",
		"location": "Cologne,Germany",
		"hl": "de",
		"gl": "de",
		"start": 10
	},
	"jobs_results": [
		{
			"job_id": "{\"docid\":\"abc123\"}",
			"title": "Data Analyst (m/w/d)",
			"company_name": "Example GmbH",
			"location": "Cologne",
			"via": "via ExampleJobs",
			"description": "SQL and Python required",
			"extensions": ["Vollzeit", "vor 3 Tagen"]
		}
	]
}`

func TestSearchEnvelope_Decode(t *testing.T) {
	var envelope SearchEnvelope
	require.NoError(t, json.Unmarshal([]byte(sampleEnvelope), &envelope))

	assert.Equal(t, "64272d609c84ac2f3119a48e", envelope.SearchMetadata.ID)
	assert.True(t, envelope.Successful())
	assert.Equal(t, "Data Analyst", envelope.SearchParameters.Query)
	assert.Equal(t, 10, envelope.SearchParameters.Start)
	require.Len(t, envelope.JobResults, 1)
	assert.Equal(t, "Example GmbH", envelope.JobResults[0].CompanyName)
	assert.Equal(t, []string{"Vollzeit", "vor 3 Tagen"}, envelope.JobResults[0].Extensions)
}

func TestSearchEnvelope_BinaryRoundTrip(t *testing.T) {
	var envelope SearchEnvelope
	require.NoError(t, json.Unmarshal([]byte(sampleEnvelope), &envelope))

	data, err := envelope.MarshalBinary()
	require.NoError(t, err)

	var decoded SearchEnvelope
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, envelope, decoded)
}

func TestSearchEnvelope_Rows(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	envelope := SearchEnvelope{
		SearchMetadata: SearchMetadata{
			ID:        "search-1",
			Status:    StatusSuccess,
			CreatedAt: createdAt,
			JobsURL:   "https://jobs.example.com",
		},
		SearchParameters: SearchParameters{
			Engine:   "jobs",
			Query:    "Data Engineer",
			Location: "Berlin,Germany",
			Language: "de",
			Country:  "de",
			Start:    20,
		},
		JobResults: []JobResult{
			{JobID: "job-1", Title: "Data Engineer", CompanyName: "ACME"},
			{JobID: "job-2", Title: "Analytics Engineer", CompanyName: "Umbrella"},
		},
	}

	metadata := envelope.MetadataRow()
	assert.Equal(t, "search-1", metadata.SearchID)
	assert.Equal(t, createdAt, metadata.CreatedAt)

	parameters := envelope.ParametersRow()
	assert.Equal(t, "search-1", parameters.SearchID)
	assert.Equal(t, int32(20), parameters.Start)

	rows := envelope.JobRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "search-1", rows[0].SearchID)
	assert.Equal(t, "ACME", rows[0].Company)
	assert.Equal(t, "job-2", rows[1].JobID)
}

func TestSearchEnvelope_ErrorStatus(t *testing.T) {
	envelope := SearchEnvelope{
		SearchMetadata: SearchMetadata{Status: StatusError},
	}
	assert.False(t, envelope.Successful())
}

package model

import "time"

// IngestRunStatus is the lifecycle state of an ingestion run.
type IngestRunStatus string

const (
	IngestRunRunning  IngestRunStatus = "running"
	IngestRunComplete IngestRunStatus = "complete"
	IngestRunFailed   IngestRunStatus = "failed"
)

// IngestRun records one invocation of the ingestion pipeline.
type IngestRun struct {
	ID           string          `json:"id"`
	Status       IngestRunStatus `json:"status"`
	NumDocuments int             `json:"num_documents"`
	NumPersisted int             `json:"num_persisted"`
	NumFailed    int             `json:"num_failed"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// Package store persists filing extraction results to the warehouse and
// serves the canned analytical queries. Two backends exist: Postgres for
// real deployments and SQLite for local runs.
package store

import (
	"context"

	"github.com/sells-group/filings-cli/internal/model"
)

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// InsertFiling writes one summary row plus one row per mention, all in
	// a single transaction.
	InsertFiling(ctx context.Context, filing model.Filing, sourceFile string) error

	// RunNamedQuery executes one of the canned analytical queries and
	// returns its rows as column-name keyed maps.
	RunNamedQuery(ctx context.Context, name string) ([]map[string]any, error)

	// Ingest runs
	CreateIngestRun(ctx context.Context, run model.IngestRun) error
	CompleteIngestRun(ctx context.Context, id string, persisted, failed int, status model.IngestRunStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Package pipeline runs the filing ingestion flow: classify pages on every
// document, extract structured AI-risk data from the relevant pages, and
// reconcile the results into the warehouse. Per-document failures reduce
// the output set; they never abort the batch.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/store"
	"github.com/sells-group/filings-cli/pkg/docai"
)

// Pipeline wires the Document AI client and the store together.
type Pipeline struct {
	docai       docai.Client
	store       store.Store
	classes     []docai.PageClassConfig
	targetClass string
	concurrency int
	pollOpts    []docai.PollOption
}

// New builds a Pipeline. The first page class is the extraction target.
// Concurrency bounds both parallel stages; values below 1 mean unbounded.
func New(client docai.Client, st store.Store, classes []docai.PageClassConfig, concurrency int, pollOpts ...docai.PollOption) *Pipeline {
	if len(classes) == 0 {
		classes = DefaultPageClasses()
	}
	return &Pipeline{
		docai:       client,
		store:       st,
		classes:     classes,
		targetClass: classes[0].Name,
		concurrency: concurrency,
		pollOpts:    pollOpts,
	}
}

// RunReport summarizes one pipeline invocation.
type RunReport struct {
	RunID      string `json:"run_id"`
	Documents  int    `json:"documents"`
	Classified int    `json:"classified"`
	Extracted  int    `json:"extracted"`
	Persisted  int    `json:"persisted"`
	Failed     int    `json:"failed"`
}

// Run ingests the given document locators end to end. The schema migration
// is idempotent and runs before any write; everything after that follows
// classify -> extract -> persist with parallel fan-out on the latter two.
func (p *Pipeline) Run(ctx context.Context, locators []string) (*RunReport, error) {
	report := &RunReport{Documents: len(locators)}
	if len(locators) == 0 {
		zap.L().Info("no documents to ingest")
		return report, nil
	}

	if err := p.store.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: migrate")
	}

	run := model.IngestRun{
		ID:           uuid.New().String(),
		Status:       model.IngestRunRunning,
		NumDocuments: len(locators),
		StartedAt:    time.Now().UTC(),
	}
	if err := p.store.CreateIngestRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: create ingest run")
	}
	report.RunID = run.ID

	zap.L().Info("starting ingestion",
		zap.String("run_id", run.ID),
		zap.Int("documents", len(locators)),
		zap.Int("concurrency", p.concurrency),
	)

	handles := p.ClassifyAll(ctx, locators)

	// Preserve input order for the fan-out; the map itself is unordered.
	docs := make([]ClassifiedDoc, 0, len(handles))
	for _, loc := range locators {
		if id, ok := handles[loc]; ok {
			docs = append(docs, ClassifiedDoc{Locator: loc, ParseID: id})
		}
	}
	report.Classified = len(docs)

	outcomes := p.ExtractAll(ctx, docs)
	for _, o := range outcomes {
		if !o.Skipped {
			report.Extracted++
		}
	}

	report.Persisted, report.Failed = p.PersistAll(ctx, outcomes)

	status := model.IngestRunComplete
	if report.Persisted == 0 && report.Failed > 0 {
		status = model.IngestRunFailed
	}
	if err := p.store.CompleteIngestRun(ctx, run.ID, report.Persisted, report.Failed, status); err != nil {
		zap.L().Warn("failed to finalize ingest run", zap.String("run_id", run.ID), zap.Error(err))
	}

	zap.L().Info("ingestion complete",
		zap.String("run_id", run.ID),
		zap.Int("classified", report.Classified),
		zap.Int("extracted", report.Extracted),
		zap.Int("persisted", report.Persisted),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
